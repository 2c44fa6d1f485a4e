package capture

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
)

var ErrEncoderUnavailable = errors.New("no supported recording encoder available")

// Codec is one negotiated recording codec. The chosen codec determines
// the container and therefore the output file extension.
type Codec struct {
	Name    string `json:"name"`
	Encoder string `json:"-"`
	Ext     string `json:"ext"`
}

// codecPriority is the negotiation order: H.264-in-container first,
// then VP8, then VP9, then whatever general-purpose encoder is left.
var codecPriority = []Codec{
	{Name: "h264", Encoder: "libx264", Ext: "mp4"},
	{Name: "vp8", Encoder: "libvpx", Ext: "webm"},
	{Name: "vp9", Encoder: "libvpx-vp9", Ext: "webm"},
	{Name: "mpeg4", Encoder: "mpeg4", Ext: "mp4"},
}

// negotiateCodec queries the ffmpeg binary for its available encoders
// and picks the best-supported codec.
func negotiateCodec(ffmpegPath string) (Codec, error) {
	path := ffmpegPath
	if path == "" {
		path = "ffmpeg"
	}
	resolved, err := exec.LookPath(path)
	if err != nil {
		return Codec{}, ErrEncoderUnavailable
	}

	out, err := exec.Command(resolved, "-hide_banner", "-encoders").Output()
	if err != nil {
		return Codec{}, ErrEncoderUnavailable
	}

	return pickCodec(out)
}

// pickCodec scans ffmpeg's encoder listing for the first codec in
// priority order. Encoder names appear as their own column in the
// listing, one encoder per line.
func pickCodec(encoderListing []byte) (Codec, error) {
	available := make(map[string]bool)
	var firstVideo string
	scanner := bufio.NewScanner(bytes.NewReader(encoderListing))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		// "V..... = Video" in the legend is not an encoder line.
		if len(fields) >= 2 && strings.HasPrefix(fields[0], "V") && fields[1] != "=" {
			available[fields[1]] = true
			if firstVideo == "" {
				firstVideo = fields[1]
			}
		}
	}

	for _, codec := range codecPriority {
		if available[codec.Encoder] {
			return codec, nil
		}
	}
	if firstVideo != "" {
		// Unknown encoders go into a Matroska container, which accepts
		// any video codec.
		return Codec{Name: firstVideo, Encoder: firstVideo, Ext: "mkv"}, nil
	}
	return Codec{}, ErrEncoderUnavailable
}

// encoderProc is one running encoder child: JPEG frames in, a playable
// file out on Finish.
type encoderProc interface {
	io.Writer
	Finish() error
}

type ffmpegProc struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
}

func (f *ffmpegProc) Write(p []byte) (int, error) {
	return f.stdin.Write(p)
}

func (f *ffmpegProc) Finish() error {
	_ = f.stdin.Close()
	return f.cmd.Wait()
}

// startFFmpeg spawns the encoder child reading an image2pipe stream on
// stdin and writing the negotiated container to path.
func startFFmpeg(ffmpegPath string, codec Codec, path string, frameRate int) (encoderProc, error) {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	cmd := exec.Command(ffmpegPath,
		"-hide_banner", "-loglevel", "error",
		"-f", "image2pipe",
		"-framerate", strconv.Itoa(frameRate),
		"-i", "-",
		"-c:v", codec.Encoder,
		"-pix_fmt", "yuv420p",
		path,
	)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start encoder: %w", err)
	}
	return &ffmpegProc{cmd: cmd, stdin: stdin}, nil
}
