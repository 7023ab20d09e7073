package workflow

// OutputField names one of the two fields a step output can expose.
type OutputField string

const (
	FieldURL  OutputField = "url"
	FieldText OutputField = "text"
)

// StepOutput is the materialised result of a successful step. Either field
// may be nil; a step output is never mutated after creation.
type StepOutput struct {
	URL  *string `json:"url"`
	Text *string `json:"text"`
}

// URLOutput builds an output carrying only a URL.
func URLOutput(url string) StepOutput {
	return StepOutput{URL: &url}
}

// TextOutput builds an output carrying only text.
func TextOutput(text string) StepOutput {
	return StepOutput{Text: &text}
}

// Field returns the requested field and whether it is present.
func (o StepOutput) Field(field OutputField) (string, bool) {
	switch field {
	case FieldURL:
		if o.URL != nil {
			return *o.URL, true
		}
	case FieldText:
		if o.Text != nil {
			return *o.Text, true
		}
	}
	return "", false
}

// IsEmpty reports whether the output carries neither field.
func (o StepOutput) IsEmpty() bool {
	return o.URL == nil && o.Text == nil
}

// Outputs maps step identifiers to their produced outputs.
type Outputs map[string]StepOutput

// Lookup resolves a step's output field.
func (o Outputs) Lookup(stepID string, field OutputField) (string, bool) {
	out, ok := o[stepID]
	if !ok {
		return "", false
	}
	return out.Field(field)
}

// Clone returns a shallow copy; StepOutput values are immutable.
func (o Outputs) Clone() Outputs {
	out := make(Outputs, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}
