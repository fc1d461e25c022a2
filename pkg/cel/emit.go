package cel

import "strings"

// Emit renders d to its canonical, whitespace-free CEL form. This is the
// exact string over which the expression hash is computed, so its shape
// must match the parser/mapper's schema byte for byte.
func Emit(d Descriptor) string {
	var sb strings.Builder
	sb.WriteString("default_certification(ValidationArgs{")

	switch d.Kind {
	case Skip:
		sb.WriteString("no_certification:Empty{}")
	default:
		sb.WriteString("certification:Certification{")
		emitRequest(&sb, d.Request)
		emitResponse(&sb, d.Response)
		sb.WriteString("}")
	}

	sb.WriteString("})")
	return sb.String()
}

func emitRequest(sb *strings.Builder, req *RequestCertification) {
	if req == nil {
		sb.WriteString("no_request_certification:Empty{},")
		return
	}
	sb.WriteString("request_certification:RequestCertification{certified_request_headers:")
	emitStringArray(sb, req.Headers)
	sb.WriteString(",certified_query_parameters:")
	emitStringArray(sb, req.QueryParameters)
	sb.WriteString("},")
}

func emitResponse(sb *strings.Builder, resp *ResponseCertification) {
	sb.WriteString("response_certification:ResponseCertification{")
	switch resp.Mode {
	case CertifiedResponseHeaders:
		sb.WriteString("certified_response_headers")
	default:
		sb.WriteString("response_header_exclusions")
	}
	sb.WriteString(":ResponseHeaderList{headers:")
	emitStringArray(sb, resp.Headers)
	sb.WriteString("}}")
}

// emitStringArray always emits "[]" for an empty slice, per the resolved
// open question on trailing zero-length array emission.
func emitStringArray(sb *strings.Builder, items []string) {
	sb.WriteByte('[')
	for i, item := range items {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteByte('"')
		sb.WriteString(item)
		sb.WriteByte('"')
	}
	sb.WriteByte(']')
}
