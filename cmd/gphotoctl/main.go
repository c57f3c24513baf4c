// Command gphotoctl runs the orchestrator: an HTTP API plus a background
// worker pool that dispatches queued jobs to the bulk-upload, file-disguise,
// native-rpc, pipeline and indexer providers.
package main

func main() {
	Execute()
}
