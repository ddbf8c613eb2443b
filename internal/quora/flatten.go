package quora

// Flatten promotes the inner fields of nestedKey to the top level of each
// record, prefixing promoted field names with prefix, and removes the
// nesting key. Records without nestedKey pass through unchanged. Records
// are mutated in place; the slice is returned for chaining.
func Flatten(records []RawRecord, nestedKey, prefix string) []RawRecord {
	for _, rec := range records {
		inner, ok := rec[nestedKey].(map[string]any)
		if !ok {
			continue
		}
		for k, v := range inner {
			rec[prefix+k] = v
		}
		delete(rec, nestedKey)
	}
	return records
}
