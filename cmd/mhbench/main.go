// mhbench generates, validates, and deploys cyber-range environments.
package main

func main() {
	Execute()
}
