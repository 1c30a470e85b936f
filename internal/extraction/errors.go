package extraction

import "errors"

var (
	ErrNoImages      = errors.New("no images found to process")
	ErrRunInProgress = errors.New("extraction already running for this session")
)
