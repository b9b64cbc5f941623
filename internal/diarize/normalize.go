package diarize

// normalizeArgs builds the ffmpeg argv that converts source to a neutral
// 16kHz mono WAV at dest, working around native codec quirks in the
// underlying diarization model.
func normalizeArgs(source, dest string) []string {
	return []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
		"-vn", "-sn", "-dn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		dest,
	}
}
