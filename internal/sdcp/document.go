package sdcp

// Document is a decoded JSON object. Numbers are float64, nested objects are
// map[string]any, arrays are []any.
type Document map[string]any

// Object returns the nested object under key.
func (d Document) Object(key string) (Document, bool) {
	v, ok := d[key].(map[string]any)
	if !ok {
		return nil, false
	}
	return Document(v), true
}

// Array returns the array under key.
func (d Document) Array(key string) ([]any, bool) {
	v, ok := d[key].([]any)
	return v, ok
}

// Float returns the number under key.
func (d Document) Float(key string) (float64, bool) {
	v, ok := d[key].(float64)
	return v, ok
}

// Int returns the number under key truncated to an int. Booleans are accepted
// as 0/1 since some firmware revisions send flags either way.
func (d Document) Int(key string) (int, bool) {
	switch v := d[key].(type) {
	case float64:
		return int(v), true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// String returns the string under key.
func (d Document) String(key string) (string, bool) {
	v, ok := d[key].(string)
	return v, ok
}

// Has reports whether key is present with a non-null value.
func (d Document) Has(key string) bool {
	v, ok := d[key]
	return ok && v != nil
}
