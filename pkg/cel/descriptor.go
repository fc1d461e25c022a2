package cel

// DescriptorKind discriminates the three observable certification shapes
// the emitter can ever produce: Skip, ResponseOnly, Full.
type DescriptorKind int

const (
	Skip DescriptorKind = iota
	ResponseOnly
	Full
)

// ResponseCertificationMode selects whether ResponseHeaders is an allow
// list or a deny list.
type ResponseCertificationMode int

const (
	CertifiedResponseHeaders ResponseCertificationMode = iota
	ResponseHeaderExclusions
)

// ResponseCertification configures which response headers participate in
// certification.
type ResponseCertification struct {
	Mode    ResponseCertificationMode
	Headers []string
}

// RequestCertification configures which request headers and query
// parameters participate in certification. Method and body are always
// certified and carry no configuration here.
type RequestCertification struct {
	Headers         []string
	QueryParameters []string
}

// Descriptor is the typed certification descriptor produced by mapping a
// parsed CEL value tree, or consumed directly by the emitter.
type Descriptor struct {
	Kind     DescriptorKind
	Request  *RequestCertification   // non-nil only when Kind == Full
	Response *ResponseCertification  // non-nil when Kind == ResponseOnly or Full
}
