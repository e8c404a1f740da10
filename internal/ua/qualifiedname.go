package ua

// QualifiedName pairs a namespace index with a name, used for browse names
// and structure field names.
type QualifiedName struct {
	NamespaceIndex uint16
	Name           string
}

func (d *Decoder) ReadQualifiedName() (QualifiedName, error) {
	ns, err := d.ReadUInt16()
	if err != nil {
		return QualifiedName{}, err
	}
	name, _, err := d.ReadString()
	if err != nil {
		return QualifiedName{}, err
	}
	return QualifiedName{NamespaceIndex: ns, Name: name}, nil
}

func (e *Encoder) WriteQualifiedName(q QualifiedName) {
	e.WriteUInt16(q.NamespaceIndex)
	e.WriteString(q.Name, true)
}

// localizedTextLocaleBit and localizedTextTextBit flag which optional
// fields of LocalizedText are present in the encoding byte (Part 6 §5.2.2.14).
const (
	localizedTextLocaleBit byte = 0x01
	localizedTextTextBit   byte = 0x02
)

// LocalizedText carries a human-readable string together with the locale
// it is written in. Either field may be absent independently.
type LocalizedText struct {
	HasLocale bool
	Locale    string
	HasText   bool
	Text      string
}

func (d *Decoder) ReadLocalizedText() (LocalizedText, error) {
	enc, err := d.ReadByte()
	if err != nil {
		return LocalizedText{}, err
	}
	var lt LocalizedText
	if enc&localizedTextLocaleBit != 0 {
		s, ok, err := d.ReadString()
		if err != nil {
			return LocalizedText{}, err
		}
		lt.HasLocale = ok
		lt.Locale = s
	}
	if enc&localizedTextTextBit != 0 {
		s, ok, err := d.ReadString()
		if err != nil {
			return LocalizedText{}, err
		}
		lt.HasText = ok
		lt.Text = s
	}
	return lt, nil
}

func (e *Encoder) WriteLocalizedText(lt LocalizedText) {
	enc := byte(0)
	if lt.HasLocale {
		enc |= localizedTextLocaleBit
	}
	if lt.HasText {
		enc |= localizedTextTextBit
	}
	e.WriteByte(enc)
	if lt.HasLocale {
		e.WriteString(lt.Locale, true)
	}
	if lt.HasText {
		e.WriteString(lt.Text, true)
	}
}
