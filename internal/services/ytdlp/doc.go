// Package ytdlp drives the yt-dlp command line tool.
//
// The Client builds invocations for metadata lookup, file downloads,
// pass-through streaming, and subtitle listing/download. yt-dlp's text output
// is not a stable contract, so every parser here works on captured lines
// through the OutputAccumulator and the artifact resolution helpers, and the
// subprocess itself sits behind the Executor interface so tests can replay
// recorded output without spawning anything.
//
// The client never retries. Failures carry the exit code and a bounded tail of
// the tool's diagnostic stream (see ExtractionError).
package ytdlp
