package acquire

import (
	"os/exec"
	"runtime"
)

// ForceUTF8ChildIO forces a child process's stdio to UTF-8 on Windows hosts,
// where console code pages otherwise mangle non-ASCII downloader/demuxer
// output; decode errors in the captured output are tolerated elsewhere via
// truncate's rune-safe trimming. This is the single implementation of the
// concern; the subprocess runners in internal/asr and internal/diarize call
// it too, while other exec call sites in the module do not.
func ForceUTF8ChildIO(cmd *exec.Cmd) {
	forceUTF8ChildIO(cmd)
}

func forceUTF8ChildIO(cmd *exec.Cmd) {
	if runtime.GOOS != "windows" {
		return
	}
	cmd.Env = append(cmd.Env, "PYTHONIOENCODING=utf-8", "PYTHONUTF8=1")
}
