package jsonrpc

import "github.com/ttc-protocol/ttc-monitor/ttcerr"

// errorCodes maps the stable ttcerr.Tag taxonomy to the integer codes
// this module's JSON-RPC surface returns to clients, so they can switch
// on a code without string matching. Codes live outside the JSON-RPC 2.0
// reserved range (-32768..-32000) by using positive application codes.
var errorCodes = map[ttcerr.Tag]int{
	ttcerr.TagInvalidPreferences: 1001,
	ttcerr.TagDuplicateJob:       1002,
	ttcerr.TagNotInProgress:      1003,
	ttcerr.TagUnknownJob:         1004,
	ttcerr.TagChainTimeout:       1005,
	ttcerr.TagChainUnreachable:   1006,
	ttcerr.TagProofFailed:        1007,
	ttcerr.TagStateMismatch:      1008,
	ttcerr.TagSchemaMissing:      1009,
	ttcerr.TagBindFailed:         1010,
	ttcerr.TagCancelled:          1011,
}

// ToRPCError translates any error into a JSON-RPC 2.0 Error object. A
// *ttcerr.Error maps through errorCodes; anything else becomes a
// CodeInternalError whose message is the error's own Error() text.
func ToRPCError(err error) *Error {
	if err == nil {
		return nil
	}
	if te, ok := ttcerr.As(err); ok {
		code, known := errorCodes[te.Tag]
		if !known {
			code = CodeInternalError
		}
		return &Error{Code: code, Message: string(te.Tag), Data: te.Detail}
	}
	return &Error{Code: CodeInternalError, Message: err.Error()}
}
