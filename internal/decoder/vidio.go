package decoder

import (
	"fmt"

	vidio "github.com/AlexEidt/Vidio"
)

// Vidio decodes files through ffmpeg via github.com/AlexEidt/Vidio.
type Vidio struct {
	*stream
}

func NewVidio(opts Options) *Vidio {
	return &Vidio{stream: newStream(openVidio, opts, "vidio")}
}

type vidioSource struct {
	v    *vidio.Video
	info VideoInfo
}

func openVidio(path string) (source, error) {
	v, err := vidio.NewVideo(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if v.Depth() != 4 {
		v.Close()
		return nil, fmt.Errorf("open %s: unexpected pixel depth %d", path, v.Depth())
	}
	return &vidioSource{v: v, info: infoOf(path, v)}, nil
}

func infoOf(path string, v *vidio.Video) VideoInfo {
	return VideoInfo{
		Path:     path,
		Width:    v.Width(),
		Height:   v.Height(),
		FPS:      v.FPS(),
		Frames:   v.Frames(),
		Duration: v.Duration(),
		Codec:    v.Codec(),
	}
}

func (s *vidioSource) Info() VideoInfo { return s.info }

func (s *vidioSource) Next(dst []byte) (bool, error) {
	if err := s.v.SetFrameBuffer(dst); err != nil {
		return false, err
	}
	return s.v.Read(), nil
}

func (s *vidioSource) Close() error {
	s.v.Close()
	return nil
}

// Probe opens path only long enough to read its stream info.
func Probe(path string) (VideoInfo, error) {
	if IsSynthetic(path) {
		src, err := openSynthetic(path)
		if err != nil {
			return VideoInfo{}, err
		}
		defer src.Close()
		return src.Info(), nil
	}
	v, err := vidio.NewVideo(path)
	if err != nil {
		return VideoInfo{}, fmt.Errorf("probe %s: %w", path, err)
	}
	defer v.Close()
	return infoOf(path, v), nil
}
