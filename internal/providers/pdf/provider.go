package pdf

// Provider renders printable documents with maroto.
type Provider struct{}

func NewProvider() *Provider {
	return &Provider{}
}
