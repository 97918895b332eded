// Package proc abstracts the OS process operations the engine needs: start,
// wait, forceful kill, and the suspend/resume pair used for pause. Platforms
// without stop/continue signals return ErrUnsupported from Suspend and
// Resume.
package proc
