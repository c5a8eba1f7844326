package log

import "time"

// Field is a structured key/value pair attached to one entry.
type Field struct {
	Key   string
	Value interface{}
}

// F creates a field.
func F(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// Err creates the "error" field.
func Err(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

func Str(key, value string) Field                    { return Field{Key: key, Value: value} }
func Int(key string, value int) Field                { return Field{Key: key, Value: value} }
func Bool(key string, value bool) Field              { return Field{Key: key, Value: value} }
func Strs(key string, value []string) Field          { return Field{Key: key, Value: value} }
func Duration(key string, value time.Duration) Field { return Field{Key: key, Value: value} }
func Any(key string, value interface{}) Field        { return Field{Key: key, Value: value} }

// Component creates the component field.
func Component(value string) Field {
	return Field{Key: ComponentKey, Value: value}
}

// RunID creates the run id field.
func RunID(value string) Field {
	return Field{Key: RunIDKey, Value: value}
}

// Step creates the step field used by multi-step operations such as teardown.
func Step(value string) Field {
	return Field{Key: StepKey, Value: value}
}
