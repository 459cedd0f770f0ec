// Package memory holds the in-process stores a crawl session writes into:
// the visited set, the content store and the failure log. All stores are safe
// for concurrent use and live only as long as the process.
package memory
