package runconfig

import "strings"

// Keys understood by the configuration manager.
const (
	KeyBlockchainAddress = "blockchain_address"
	KeyFiscoBcosVersion  = "blockchain_fiscobcos_version"
	KeyChainID           = "chain_id"
	KeyOrgID             = "org_id"
	KeyAmopID            = "amop_id"
	KeyGroupID           = "group_id"
	KeyCNSProfileActive  = "cns_profile_active"
	KeyCNSContractFollow = "cns_contract_follow"
	KeyPersistenceType   = "persistence_type"
	KeyMySQLAddress      = "mysql_address"
	KeyMySQLDatabase     = "mysql_database"
	KeyMySQLUsername     = "mysql_username"
	KeyMySQLPassword     = "mysql_password"
	KeyRedisAddress      = "redis_address"
	KeyRedisPassword     = "redis_password"
)

const (
	commentPrefix     = "#"
	keyValueSeparator = "="
)

// Values is the parsed key/value view of a run.config file.
type Values map[string]string

// Get returns the value stored under key, or the empty string.
func (v Values) Get(key string) string {
	return v[key]
}

// IsPair reports whether line carries a key/value pair. Comments and lines
// without a separator are passed through untouched by every rewrite.
func IsPair(line string) bool {
	return !strings.HasPrefix(line, commentPrefix) && strings.Contains(line, keyValueSeparator)
}

// Parse builds the mapping for lines. The last occurrence of a key wins. A
// pair that does not split into exactly a key and a value (trailing "=" or a
// value containing "=") is stored with an empty value.
func Parse(lines []string) Values {
	values := make(Values, len(lines))
	for _, line := range lines {
		if !IsPair(line) {
			continue
		}
		segments := splitPair(line)
		if len(segments) == 2 {
			values[segments[0]] = segments[1]
		} else {
			values[segments[0]] = ""
		}
	}
	return values
}

// splitPair splits on every separator and drops trailing empty segments, so
// "a=" yields one segment and "a=b=c" yields three.
func splitPair(line string) []string {
	segments := strings.Split(line, keyValueSeparator)
	for len(segments) > 1 && segments[len(segments)-1] == "" {
		segments = segments[:len(segments)-1]
	}
	return segments
}

// KeyOf returns the key of a pair line and whether line is a pair at all.
func KeyOf(line string) (string, bool) {
	if !IsPair(line) {
		return "", false
	}
	key, _, _ := strings.Cut(line, keyValueSeparator)
	return key, true
}

// Rewrite returns a copy of lines in which every pair whose key appears in
// updates carries the new value. Everything else is copied verbatim, so the
// line count and the order of untouched lines never change.
func Rewrite(lines []string, updates map[string]string) []string {
	out := make([]string, len(lines))
	for i, line := range lines {
		key, ok := KeyOf(line)
		if !ok {
			out[i] = line
			continue
		}
		if value, found := updates[key]; found {
			out[i] = key + keyValueSeparator + value
			continue
		}
		out[i] = line
	}
	return out
}
