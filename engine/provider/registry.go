package provider

import "fmt"

// factories maps each supported Kind to its Adapter constructor. Adding a
// new provider is additive: implement Adapter and register it here.
var factories = map[Kind]func() Adapter{
	KindGitLab:         func() Adapter { return newGitLabAdapter() },
	KindSlack:          func() Adapter { return newSlackAdapter() },
	KindDiscord:        func() Adapter { return newDiscordAdapter() },
	KindGitHub:         func() Adapter { return newGitHubAdapter() },
	KindJira:           func() Adapter { return newJiraAdapter() },
	KindGoogleCalendar: func() Adapter { return newGoogleCalendarAdapter() },
	KindBuiltin:        func() Adapter { return newBuiltinAdapter() },
	KindKVStore:        func() Adapter { return newKVStoreAdapter() },
}

// Resolve returns the Adapter registered for kind.
func Resolve(kind Kind) (Adapter, error) {
	factory, ok := factories[kind]
	if !ok {
		return nil, fmt.Errorf("provider: no adapter registered for kind %q", kind)
	}
	return factory(), nil
}

// Valid reports whether kind is a known provider type.
func Valid(kind Kind) bool {
	_, ok := factories[kind]
	return ok
}
