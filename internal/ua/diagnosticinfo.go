package ua

// DiagnosticInfo encoding-mask bits (Part 6 §5.2.2.12).
const (
	diagHasSymbolicId          byte = 0x01
	diagHasNamespaceUri        byte = 0x02
	diagHasLocalizedText       byte = 0x04
	diagHasLocale              byte = 0x08
	diagHasAdditionalInfo      byte = 0x10
	diagHasInnerStatusCode     byte = 0x20
	diagHasInnerDiagnosticInfo byte = 0x40
)

// DiagnosticInfo carries optional extended error context and may nest
// through InnerDiagnosticInfo; depth is bounded by MaxRecursionDepth so a
// malicious peer cannot exhaust the stack with a deeply nested chain.
type DiagnosticInfo struct {
	HasSymbolicId    bool
	SymbolicId       int32
	HasNamespaceURI  bool
	NamespaceURI     int32
	HasLocalizedText bool
	LocalizedText    int32
	HasLocale        bool
	Locale           int32

	HasAdditionalInfo bool
	AdditionalInfo    string

	HasInnerStatusCode bool
	InnerStatusCode    StatusCode

	HasInnerDiagnosticInfo bool
	InnerDiagnosticInfo    *DiagnosticInfo
}

func (d *Decoder) ReadDiagnosticInfo() (DiagnosticInfo, error) {
	if err := d.requireEnter("DiagnosticInfo"); err != nil {
		return DiagnosticInfo{}, err
	}
	defer d.leave()

	mask, err := d.ReadByte()
	if err != nil {
		return DiagnosticInfo{}, err
	}
	var di DiagnosticInfo
	if mask&diagHasSymbolicId != 0 {
		v, err := d.ReadInt32()
		if err != nil {
			return DiagnosticInfo{}, err
		}
		di.SymbolicId, di.HasSymbolicId = v, true
	}
	if mask&diagHasNamespaceUri != 0 {
		v, err := d.ReadInt32()
		if err != nil {
			return DiagnosticInfo{}, err
		}
		di.NamespaceURI, di.HasNamespaceURI = v, true
	}
	if mask&diagHasLocalizedText != 0 {
		v, err := d.ReadInt32()
		if err != nil {
			return DiagnosticInfo{}, err
		}
		di.LocalizedText, di.HasLocalizedText = v, true
	}
	if mask&diagHasLocale != 0 {
		v, err := d.ReadInt32()
		if err != nil {
			return DiagnosticInfo{}, err
		}
		di.Locale, di.HasLocale = v, true
	}
	if mask&diagHasAdditionalInfo != 0 {
		s, _, err := d.ReadString()
		if err != nil {
			return DiagnosticInfo{}, err
		}
		di.AdditionalInfo, di.HasAdditionalInfo = s, true
	}
	if mask&diagHasInnerStatusCode != 0 {
		v, err := d.ReadUInt32()
		if err != nil {
			return DiagnosticInfo{}, err
		}
		di.InnerStatusCode, di.HasInnerStatusCode = StatusCode(v), true
	}
	if mask&diagHasInnerDiagnosticInfo != 0 {
		inner, err := d.ReadDiagnosticInfo()
		if err != nil {
			return DiagnosticInfo{}, err
		}
		di.InnerDiagnosticInfo, di.HasInnerDiagnosticInfo = &inner, true
	}
	return di, nil
}

func (e *Encoder) WriteDiagnosticInfo(di DiagnosticInfo) error {
	if err := e.requireEnter("DiagnosticInfo"); err != nil {
		return err
	}
	defer e.leave()

	mask := byte(0)
	if di.HasSymbolicId {
		mask |= diagHasSymbolicId
	}
	if di.HasNamespaceURI {
		mask |= diagHasNamespaceUri
	}
	if di.HasLocalizedText {
		mask |= diagHasLocalizedText
	}
	if di.HasLocale {
		mask |= diagHasLocale
	}
	if di.HasAdditionalInfo {
		mask |= diagHasAdditionalInfo
	}
	if di.HasInnerStatusCode {
		mask |= diagHasInnerStatusCode
	}
	if di.HasInnerDiagnosticInfo {
		mask |= diagHasInnerDiagnosticInfo
	}
	e.WriteByte(mask)
	if di.HasSymbolicId {
		e.WriteInt32(di.SymbolicId)
	}
	if di.HasNamespaceURI {
		e.WriteInt32(di.NamespaceURI)
	}
	if di.HasLocalizedText {
		e.WriteInt32(di.LocalizedText)
	}
	if di.HasLocale {
		e.WriteInt32(di.Locale)
	}
	if di.HasAdditionalInfo {
		e.WriteString(di.AdditionalInfo, true)
	}
	if di.HasInnerStatusCode {
		e.WriteUInt32(uint32(di.InnerStatusCode))
	}
	if di.HasInnerDiagnosticInfo {
		if di.InnerDiagnosticInfo == nil {
			return decErr(BadEncodingError, e.Len(), "DiagnosticInfo: HasInnerDiagnosticInfo set with nil pointer")
		}
		if err := e.WriteDiagnosticInfo(*di.InnerDiagnosticInfo); err != nil {
			return err
		}
	}
	return nil
}
