// Package ua implements the OPC UA built-in type system and binary codec.
package ua

import "fmt"

// StatusCode is the 32-bit wire status code. The top two bits encode
// severity (good/uncertain/bad); the remaining bits identify the condition.
type StatusCode uint32

// Severity classifies a StatusCode by its top two bits.
type Severity int

const (
	SeverityGood Severity = iota
	SeverityUncertain
	SeverityBad
)

// Severity returns the severity class of the status code.
func (s StatusCode) Severity() Severity {
	switch s >> 30 {
	case 0:
		return SeverityGood
	case 1:
		return SeverityUncertain
	default:
		return SeverityBad
	}
}

func (s StatusCode) IsGood() bool      { return s.Severity() == SeverityGood }
func (s StatusCode) IsUncertain() bool { return s.Severity() == SeverityUncertain }
func (s StatusCode) IsBad() bool       { return s.Severity() == SeverityBad }

func (s StatusCode) Error() string {
	if name, ok := statusCodeNames[s]; ok {
		return name
	}
	return fmt.Sprintf("StatusCode(0x%08X)", uint32(s))
}

// Well-known status codes used throughout the codec and engine. Values are
// taken from the OPC UA status code namespace; only the subset this
// implementation raises or checks is enumerated here.
const (
	StatusGood                       StatusCode = 0x00000000
	StatusUncertain                  StatusCode = 0x40000000
	StatusBad                        StatusCode = 0x80000000
	BadDecodingError                 StatusCode = 0x80060000
	BadEncodingError                 StatusCode = 0x80070000
	BadEncodingLimitsExceeded        StatusCode = 0x80080000
	BadOutOfMemory                   StatusCode = 0x80030000
	BadInvalidState                  StatusCode = 0x80330000
	BadTimeout                       StatusCode = 0x800A0000
	GoodCallAgain                    StatusCode = 0x00A80000
	BadTcpMessageTooLarge            StatusCode = 0x80740000
	BadTcpMessageTypeInvalid         StatusCode = 0x80720000
	BadSecurityChecksFailed          StatusCode = 0x80130000
	BadSecureChannelClosed           StatusCode = 0x80560000
	BadSecureChannelIdInvalid        StatusCode = 0x80220000
	BadSecureChannelTokenUnknown     StatusCode = 0x80570000
	BadCertificateInvalid            StatusCode = 0x80120000
	BadIdentityTokenInvalid          StatusCode = 0x80150000
	BadIdentityTokenRejected         StatusCode = 0x80160000
	BadUserSignatureInvalid          StatusCode = 0x80130001 // distinct synthetic id; not raised anywhere in this module
	BadSessionIdInvalid              StatusCode = 0x80250000
	BadSessionClosed                 StatusCode = 0x80260000
	BadSessionNotActivated           StatusCode = 0x80270000
	BadTooManySubscriptions          StatusCode = 0x80460000
	BadTooManySessions               StatusCode = 0x80360000
	BadTooManyPublishRequests        StatusCode = 0x80450000
	BadNoSubscription                StatusCode = 0x80040000
	BadSequenceNumberUnknown         StatusCode = 0x80470000
	BadMessageNotAvailable           StatusCode = 0x807E0000
	BadNodeIdUnknown                 StatusCode = 0x80340000
	BadNoMatch                       StatusCode = 0x80390000
	BadRequestTimeout                StatusCode = 0x800A0000
	BadRequestTooLarge               StatusCode = 0x80B80000
	BadConnectionClosed              StatusCode = 0x80AE0000
	BadUserAccessDenied              StatusCode = 0x801F0000
	BadNotWritable                   StatusCode = 0x803B0000
)

var statusCodeNames = map[StatusCode]string{
	StatusGood:                   "Good",
	StatusUncertain:              "Uncertain",
	StatusBad:                    "Bad",
	BadDecodingError:             "BadDecodingError",
	BadEncodingError:             "BadEncodingError",
	BadEncodingLimitsExceeded:    "BadEncodingLimitsExceeded",
	BadOutOfMemory:               "BadOutOfMemory",
	BadInvalidState:              "BadInvalidState",
	BadTimeout:                   "BadTimeout",
	GoodCallAgain:                "GoodCallAgain",
	BadTcpMessageTooLarge:        "BadTcpMessageTooLarge",
	BadTcpMessageTypeInvalid:     "BadTcpMessageTypeInvalid",
	BadSecurityChecksFailed:      "BadSecurityChecksFailed",
	BadSecureChannelClosed:       "BadSecureChannelClosed",
	BadSecureChannelIdInvalid:    "BadSecureChannelIdInvalid",
	BadSecureChannelTokenUnknown: "BadSecureChannelTokenUnknown",
	BadCertificateInvalid:        "BadCertificateInvalid",
	BadIdentityTokenInvalid:      "BadIdentityTokenInvalid",
	BadIdentityTokenRejected:     "BadIdentityTokenRejected",
	BadSessionIdInvalid:          "BadSessionIdInvalid",
	BadSessionClosed:             "BadSessionClosed",
	BadSessionNotActivated:       "BadSessionNotActivated",
	BadTooManySubscriptions:      "BadTooManySubscriptions",
	BadTooManySessions:           "BadTooManySessions",
	BadTooManyPublishRequests:    "BadTooManyPublishRequests",
	BadNoSubscription:            "BadNoSubscription",
	BadSequenceNumberUnknown:     "BadSequenceNumberUnknown",
	BadMessageNotAvailable:       "BadMessageNotAvailable",
	BadNodeIdUnknown:             "BadNodeIdUnknown",
	BadNoMatch:                   "BadNoMatch",
	BadRequestTooLarge:           "BadRequestTooLarge",
	BadConnectionClosed:          "BadConnectionClosed",
	BadUserAccessDenied:          "BadUserAccessDenied",
	BadNotWritable:               "BadNotWritable",
}

// DecodeError wraps a StatusCode with positional context for debugging.
// Callers that only care about the status code can use errors.Is against
// the sentinel StatusCode values since StatusCode itself implements error.
type DecodeError struct {
	Code StatusCode
	Pos  int
	Type string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s at pos %d decoding %s", e.Code.Error(), e.Pos, e.Type)
}

func (e *DecodeError) Unwrap() error { return e.Code }

func decErr(code StatusCode, pos int, typ string) error {
	return &DecodeError{Code: code, Pos: pos, Type: typ}
}
