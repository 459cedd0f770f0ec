// Package crawler implements the crawl scheduler: a bounded pool of fetch
// workers that claims URLs against a visited set, fetches and parses pages,
// stores their content, and fans discovered links back into the frontier
// until it drains or the session is stopped.
package crawler
