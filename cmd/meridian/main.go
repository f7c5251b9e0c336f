// Meridian is an LLM edge gateway that routes chat completion requests
// across multiple backend providers with per-provider circuit breakers,
// retry with exponential backoff, and configurable load balancing.
//
// Usage:
//
//	# Start the gateway with the default configuration file
//	meridian run
//
//	# Start with a custom configuration file
//	meridian run --config /etc/meridian/config.yaml
//
//	# Validate a configuration file without starting
//	meridian validate --config config.yaml
//
//	# Show version information
//	meridian version
package main

func main() {
	Execute()
}
