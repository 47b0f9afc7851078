// Package bytesutil formats byte counts for the scan progress narration.
package bytesutil

import "fmt"

const (
	KIBI int64 = 1024        // 1024 power 1 (2 power 10)
	MEBI       = KIBI * KIBI // 1024 power 2 (2 power 20)
	GIBI       = MEBI * KIBI // 1024 power 3 (2 power 30)
	TEBI       = GIBI * KIBI // 1024 power 4 (2 power 40)
	PEBI       = TEBI * KIBI // 1024 power 5 (2 power 50)
	EXBI       = PEBI * KIBI // 1024 power 6 (2 power 60)
)

// BinaryFormat renders size with IEC binary prefixes ("2.09 KiB").
// Negative sizes render as the empty string.
func BinaryFormat(size int64) string {
	if size < 0 {
		return ""
	} else if size < KIBI {
		return fmt.Sprintf("%d B", size)
	} else if size < MEBI {
		return fmt.Sprintf("%.2f KiB", float64(size)/float64(KIBI))
	} else if size < GIBI {
		return fmt.Sprintf("%.2f MiB", float64(size)/float64(MEBI))
	} else if size < TEBI {
		return fmt.Sprintf("%.2f GiB", float64(size)/float64(GIBI))
	} else if size < PEBI {
		return fmt.Sprintf("%.2f TiB", float64(size)/float64(TEBI))
	} else if size < EXBI {
		return fmt.Sprintf("%.2f PiB", float64(size)/float64(PEBI))
	} else {
		return fmt.Sprintf("%.2f EiB", float64(size)/float64(EXBI))
	}
}
