package schemas

// OperationKind identifies the browser operation dispatched for one input item.
type OperationKind string

const (
	OperationAct     OperationKind = "act"
	OperationExtract OperationKind = "extract"
	OperationObserve OperationKind = "observe"
	OperationAgent   OperationKind = "agent"
)

// SchemaSource selects which descriptor variant of a SchemaSpec is active.
type SchemaSource string

const (
	SchemaSourceFields     SchemaSource = "fields"
	SchemaSourceExample    SchemaSource = "example"
	SchemaSourceDocument   SchemaSource = "document"
	SchemaSourceExpression SchemaSource = "expression"
)

// FieldKind is the coarse type attached to a field descriptor. It deliberately
// carries no nested shape: array elements and object members are unconstrained.
type FieldKind string

const (
	FieldString  FieldKind = "string"
	FieldNumber  FieldKind = "number"
	FieldBoolean FieldKind = "boolean"
	FieldArray   FieldKind = "array"
	FieldObject  FieldKind = "object"
)

// FieldSpec describes one named field in the field-list schema source.
type FieldSpec struct {
	Name     string    `json:"name" yaml:"name"`
	Kind     FieldKind `json:"kind" yaml:"kind"`
	Optional bool      `json:"optional,omitempty" yaml:"optional,omitempty"`
}

// SchemaSpec carries exactly one schema descriptor variant, selected by
// Source. The inactive variant fields are ignored by the resolver.
type SchemaSpec struct {
	Source SchemaSource `json:"source" yaml:"source"`
	// Fields is the declarative field list (SchemaSourceFields).
	Fields []FieldSpec `json:"fields,omitempty" yaml:"fields,omitempty"`
	// Example is a concrete value whose shape is inferred structurally
	// (SchemaSourceExample).
	Example any `json:"example,omitempty" yaml:"example,omitempty"`
	// Document is a JSON-Schema-style document translated structurally
	// (SchemaSourceDocument).
	Document map[string]any `json:"document,omitempty" yaml:"document,omitempty"`
	// Expression is source text in the contract expression language
	// (SchemaSourceExpression).
	Expression string `json:"expression,omitempty" yaml:"expression,omitempty"`
}

// ModelConfig is the read-only view of the upstream language-model client:
// a namespace path identifying the provider family, a model name, and the
// API credential.
type ModelConfig struct {
	Namespace string `json:"namespace" yaml:"namespace"`
	Name      string `json:"name" yaml:"name"`
	APIKey    string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
}

// ItemConfig is the host-supplied configuration for one input item.
type ItemConfig struct {
	Operation OperationKind `json:"operation" yaml:"operation"`
	// ConnectURL is the remote engine endpoint. Empty means the engine
	// decides (typically a locally launched browser).
	ConnectURL string `json:"connect_url,omitempty" yaml:"connect_url,omitempty"`
	// NavigateURL, when set, is visited before the operation is dispatched.
	NavigateURL string `json:"navigate_url,omitempty" yaml:"navigate_url,omitempty"`
	// Instructions is a newline-separated block of natural-language
	// instructions. How much of it is consumed depends on the operation.
	Instructions string      `json:"instructions" yaml:"instructions"`
	Schema       *SchemaSpec `json:"schema,omitempty" yaml:"schema,omitempty"`
	// MaxSteps bounds the autonomous agent loop.
	MaxSteps     int    `json:"max_steps,omitempty" yaml:"max_steps,omitempty"`
	AgentContext string `json:"agent_context,omitempty" yaml:"agent_context,omitempty"`

	EnableCaching bool `json:"enable_caching,omitempty" yaml:"enable_caching,omitempty"`
	Verbosity     int  `json:"verbosity,omitempty" yaml:"verbosity,omitempty"`
	// CaptureLogs surfaces the session's filtered log stream in the record.
	CaptureLogs bool `json:"capture_logs,omitempty" yaml:"capture_logs,omitempty"`

	Model ModelConfig `json:"model" yaml:"model"`
}
