package resources

import (
	"os"

	"github.com/edsrzf/mmap-go"
)

func readMmap(file *os.File) (mmap.MMap, error) {
	return mmap.Map(file, mmap.RDONLY, 0)
}
