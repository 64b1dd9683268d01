package utils

// StringSlice converts a decoded JSON value holding a string or a list of
// strings into a []string. Non-string list members are skipped.
func StringSlice(v any) []string {
	switch s := v.(type) {
	case string:
		return []string{s}
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}
