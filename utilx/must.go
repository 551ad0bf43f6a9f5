package utilx

// Must returns item, panicking when err is set. It is meant for startup wiring and tests
// where an error cannot be handled:
//
//	p := utilx.Must(routing.ParseAutoCreatePolicy("+logs-*,-*"))
func Must[T any](item T, err error) T {
	if err != nil {
		panic(err.Error())
	}
	return item
}
