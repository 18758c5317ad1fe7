// Package config provides configuration management for ipsniper.
//
// The package uses a Provider interface to abstract configuration loading, with the
// primary implementation being filesystem-based configuration via YAML files.
//
// # Configuration Structure
//
//	input: domains.txt                # newline-delimited domain list
//	output:
//	  path: matching_domains.txt      # where matches are flushed
//	  mode: truncate                  # truncate | append
//	resolvers:
//	  servers: [101.101.101.101, 168.95.1.1]
//	  timeout: 5s                     # per-query timeout
//	targets: [182.173.0.181]          # a domain resolving to any of these matches
//	retry:
//	  max: 2                          # retries after the first timed-out attempt
//	  delay: 500ms
//	scheduler:
//	  strategy: semaphore             # batch | semaphore | pool
//	  concurrency: 50                 # in-flight lookup budget
//	flush:
//	  threshold: 100                  # flush when this many matches are buffered
//	  on_error: requeue               # requeue | abort
//	monitor:
//	  interval: 1s
//	status:
//	  socket: /tmp/ipsniper.sock      # empty disables the live status endpoint
//
// Keys missing from the file keep their defaults; a missing file yields
// Default() entirely.
//
// # Basic Usage
//
//	cfg, err := config.New("").Load() // ~/.ipsniper/config.yaml
//	if err != nil {
//		log.Fatal(err)
//	}
//
// # Validation
//
// Load rejects configurations with empty paths, no servers, no or malformed
// target IPs, negative retry settings, a concurrency or flush threshold below
// one, and unknown strategy, mode or flush policy names. Validation failures
// wrap ErrInvalidConfig.
//
// Once loaded, a Config should be treated as immutable for the lifetime of a run.
package config
