package playback

// Sink renders synthesized PCM to an output device. Start begins playback of
// one chunk and returns immediately; Busy reports whether the chunk is still
// rendering; Stop abandons the current chunk.
//
// The controller drives exactly one chunk at a time, so implementations do
// not need to queue.
type Sink interface {
	Start(pcm []byte, sampleRate int) error
	Busy() bool
	Stop()
}
