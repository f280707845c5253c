package loader

// Arguments is the launch argument set: "--key value" pairs plus the
// positional arguments that are not part of a pair. Key order is kept so
// ToArray reproduces what was parsed.
type Arguments struct {
	keys   []string
	values map[string]string
	extra  []string
}

// NewArguments returns an empty argument set.
func NewArguments() *Arguments {
	return &Arguments{values: make(map[string]string)}
}

// Parse adds args to the set. A "--key" directly followed by another
// "--key" gets an empty value; a trailing "--key" is kept as an extra.
func (a *Arguments) Parse(args []string) {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if len(arg) > 2 && arg[:2] == "--" && i < len(args)-1 {
			value := args[i+1]
			if len(value) >= 2 && value[:2] == "--" {
				value = ""
			} else {
				i++
			}
			a.Put(arg[2:], value)
			continue
		}
		a.extra = append(a.extra, arg)
	}
}

// Get returns the value for key, or "" when absent.
func (a *Arguments) Get(key string) string {
	return a.values[key]
}

// GetOrDefault returns the value for key, or def when absent.
func (a *Arguments) GetOrDefault(key, def string) string {
	if v, ok := a.values[key]; ok {
		return v
	}
	return def
}

// ContainsKey reports whether key was given.
func (a *Arguments) ContainsKey(key string) bool {
	_, ok := a.values[key]
	return ok
}

// Put sets key to value, keeping the original position of an existing key.
func (a *Arguments) Put(key, value string) {
	if _, ok := a.values[key]; !ok {
		a.keys = append(a.keys, key)
	}
	a.values[key] = value
}

// Remove deletes key.
func (a *Arguments) Remove(key string) {
	if _, ok := a.values[key]; !ok {
		return
	}
	delete(a.values, key)
	for i, k := range a.keys {
		if k == key {
			a.keys = append(a.keys[:i], a.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order.
func (a *Arguments) Keys() []string {
	return append([]string(nil), a.keys...)
}

// Extra returns the positional arguments.
func (a *Arguments) Extra() []string {
	return append([]string(nil), a.extra...)
}

// ToArray renders the set as a command line: pairs first, then extras.
func (a *Arguments) ToArray() []string {
	out := make([]string, 0, 2*len(a.keys)+len(a.extra))
	for _, k := range a.keys {
		out = append(out, "--"+k, a.values[k])
	}
	return append(out, a.extra...)
}
