package main

// TODO: CSRF protection for the cookie session
func main() {
	startWithDig()
}
