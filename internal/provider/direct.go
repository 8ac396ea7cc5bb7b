package provider

import "context"

// DirectID is the registry name of the built-in pass-through provider.
const DirectID = "direct"

// Direct hands out the target itself and reports every check as completed.
// It serves exempt (supporter) users, who never see an ad link.
type Direct struct {
	name string
}

// NewDirect returns a pass-through provider registered under name.
func NewDirect(name string) *Direct {
	if name == "" {
		name = DirectID
	}
	return &Direct{name: name}
}

func (d *Direct) ID() string { return d.name }

// Mint implements Provider.
func (d *Direct) Mint(_ context.Context, targetURL, _ string) (string, error) {
	if err := validateTarget(targetURL); err != nil {
		return "", err
	}
	return targetURL, nil
}

// Check implements Provider.
func (d *Direct) Check(context.Context, string, string) (Completion, error) {
	return CompletionCompleted, nil
}
