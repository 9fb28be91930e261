package media

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"ReelSage/internal/modules/knowledge/domain/kerr"
	"ReelSage/internal/modules/knowledge/domain/repository"
	"ReelSage/pkg/zlog"

	"go.uber.org/zap"
)

// FFmpegExtractor 调用本机 ffmpeg 从视频抽音轨，输出与视频同名的 .mp3
type FFmpegExtractor struct {
	bin     string
	timeout time.Duration
}

func NewFFmpegExtractor(bin string, timeoutSeconds int) repository.AudioExtractor {
	if strings.TrimSpace(bin) == "" {
		bin = "ffmpeg"
	}
	timeout := time.Duration(timeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &FFmpegExtractor{bin: bin, timeout: timeout}
}

func (e *FFmpegExtractor) Extract(ctx context.Context, videoPath string) (string, error) {
	audioPath := audioPathFor(videoPath)

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	// -vn 丢弃视频流，-y 覆盖旧产物
	cmd := exec.CommandContext(ctx, e.bin, "-y", "-i", videoPath, "-vn", audioPath)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		msg := lastLine(stderr.String())
		return "", kerr.NewStageError(kerr.StageExtractAudio, "",
			fmt.Errorf("ffmpeg failed on %s: %v: %s", videoPath, err, msg))
	}
	zlog.Debug("音轨抽取完成",
		zap.String("video", videoPath),
		zap.String("audio", audioPath),
		zap.Duration("cost", time.Since(start)))
	return audioPath, nil
}

func audioPathFor(videoPath string) string {
	if strings.HasSuffix(videoPath, ".mp4") {
		return strings.TrimSuffix(videoPath, ".mp4") + ".mp3"
	}
	return videoPath + ".mp3"
}

// lastLine ffmpeg 的报错总在 stderr 末行
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}
