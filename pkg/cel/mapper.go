package cel

// ParseDescriptor parses a CEL expression string and maps it onto a typed
// Descriptor in one step.
func ParseDescriptor(input string) (Descriptor, error) {
	v, err := Parse(input)
	if err != nil {
		return Descriptor{}, err
	}
	return MapAST(v)
}

// MapAST reduces a parsed CelValue tree to the typed Descriptor, validating
// it against the fixed default_certification(ValidationArgs{...}) schema.
func MapAST(v Value) (Descriptor, error) {
	args, err := validateFunction(v, "default_certification")
	if err != nil {
		return Descriptor{}, err
	}
	if len(args) == 0 {
		return Descriptor{}, &MappingError{Kind: ErrMissingField, Node: "default_certification", Field: "ValidationArgs"}
	}
	validationArgs, err := validateObject(args[0], "ValidationArgs")
	if err != nil {
		return Descriptor{}, err
	}

	_, hasNoCert := validationArgs["no_certification"]
	certification, hasCert := validationArgs["certification"]
	switch {
	case hasNoCert && hasCert:
		return Descriptor{}, &MappingError{Kind: ErrExtraneousField, Node: "ValidationArgs", Field: "no_certification/certification"}
	case !hasNoCert && !hasCert:
		return Descriptor{}, &MappingError{Kind: ErrMissingField, Node: "ValidationArgs", Field: "no_certification or certification"}
	case hasNoCert:
		return Descriptor{Kind: Skip}, nil
	}

	certObj, err := validateObject(certification, "Certification")
	if err != nil {
		return Descriptor{}, err
	}

	reqCert, err := mapRequestCertification(certObj)
	if err != nil {
		return Descriptor{}, err
	}
	respCert, err := mapResponseCertification(certObj)
	if err != nil {
		return Descriptor{}, err
	}

	if reqCert == nil {
		return Descriptor{Kind: ResponseOnly, Response: respCert}, nil
	}
	return Descriptor{Kind: Full, Request: reqCert, Response: respCert}, nil
}

func mapRequestCertification(certification map[string]Value) (*RequestCertification, error) {
	_, hasNone := certification["no_request_certification"]
	reqNode, hasSome := certification["request_certification"]

	switch {
	case hasNone && hasSome:
		return nil, &MappingError{Kind: ErrExtraneousField, Node: "Certification", Field: "no_request_certification/request_certification"}
	case !hasNone && !hasSome:
		return nil, &MappingError{Kind: ErrMissingField, Node: "Certification", Field: "no_request_certification or request_certification"}
	case hasNone:
		return nil, nil
	}

	reqObj, err := validateObject(reqNode, "RequestCertification")
	if err != nil {
		return nil, err
	}

	headersNode, ok := reqObj["certified_request_headers"]
	if !ok {
		return nil, &MappingError{Kind: ErrMissingField, Node: "RequestCertification", Field: "certified_request_headers"}
	}
	headers, err := validateStringArray(headersNode, "certified_request_headers")
	if err != nil {
		return nil, err
	}

	queryNode, ok := reqObj["certified_query_parameters"]
	if !ok {
		return nil, &MappingError{Kind: ErrMissingField, Node: "RequestCertification", Field: "certified_query_parameters"}
	}
	query, err := validateStringArray(queryNode, "certified_query_parameters")
	if err != nil {
		return nil, err
	}

	return &RequestCertification{Headers: headers, QueryParameters: query}, nil
}

func mapResponseCertification(certification map[string]Value) (*ResponseCertification, error) {
	respNode, ok := certification["response_certification"]
	if !ok {
		return nil, &MappingError{Kind: ErrMissingField, Node: "Certification", Field: "response_certification"}
	}
	respObj, err := validateObject(respNode, "ResponseCertification")
	if err != nil {
		return nil, err
	}

	inclusionsNode, hasInclusions := respObj["certified_response_headers"]
	exclusionsNode, hasExclusions := respObj["response_header_exclusions"]

	switch {
	case hasInclusions && hasExclusions:
		return nil, &MappingError{Kind: ErrExtraneousField, Node: "ResponseCertification", Field: "certified_response_headers/response_header_exclusions"}
	case !hasInclusions && !hasExclusions:
		return nil, &MappingError{Kind: ErrMissingField, Node: "ResponseCertification", Field: "certified_response_headers or response_header_exclusions"}
	case hasInclusions:
		headers, err := extractHeaderList(inclusionsNode, "certified_response_headers")
		if err != nil {
			return nil, err
		}
		return &ResponseCertification{Mode: CertifiedResponseHeaders, Headers: headers}, nil
	default:
		headers, err := extractHeaderList(exclusionsNode, "response_header_exclusions")
		if err != nil {
			return nil, err
		}
		return &ResponseCertification{Mode: ResponseHeaderExclusions, Headers: headers}, nil
	}
}

func extractHeaderList(node Value, fieldName string) ([]string, error) {
	listObj, err := validateObject(node, "ResponseHeaderList")
	if err != nil {
		return nil, err
	}
	headersNode, ok := listObj["headers"]
	if !ok {
		return nil, &MappingError{Kind: ErrMissingField, Node: "ResponseHeaderList", Field: "headers"}
	}
	return validateStringArray(headersNode, fieldName)
}

func validateObject(v Value, name string) (map[string]Value, error) {
	if v.Kind != ValueObject {
		return nil, &MappingError{Kind: ErrUnexpectedNodeType, Node: name, Wanted: "Object", Found: v.String()}
	}
	if v.Name != name {
		return nil, &MappingError{Kind: ErrUnexpectedNodeName, Node: "Object", Wanted: name, Found: v.Name}
	}
	return v.Fields, nil
}

func validateFunction(v Value, name string) ([]Value, error) {
	if v.Kind != ValueFunction {
		return nil, &MappingError{Kind: ErrUnexpectedNodeType, Node: name, Wanted: "Function", Found: v.String()}
	}
	if v.Name != name {
		return nil, &MappingError{Kind: ErrUnexpectedNodeName, Node: "Function", Wanted: name, Found: v.Name}
	}
	return v.Args, nil
}

func validateStringArray(v Value, name string) ([]string, error) {
	if v.Kind != ValueArray {
		return nil, &MappingError{Kind: ErrUnexpectedNodeType, Node: name, Wanted: "Array", Found: v.String()}
	}
	out := make([]string, len(v.Elements))
	for i, e := range v.Elements {
		if e.Kind != ValueString {
			return nil, &MappingError{Kind: ErrUnexpectedNodeType, Node: name, Wanted: "String", Found: e.String()}
		}
		out[i] = e.Str
	}
	return out, nil
}
