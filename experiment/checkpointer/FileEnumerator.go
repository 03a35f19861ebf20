package checkpointer

import "fmt"

// FilenameEnumerator returns a generator of numbered filenames of the
// form filename-N.extension. The first call yields N = start+1 and
// every following call increments N by one.
func FilenameEnumerator(start int, filename, extension string) func() string {
	n := start
	return func() string {
		n++
		return fmt.Sprintf("%s-%d%s", filename, n, extension)
	}
}
