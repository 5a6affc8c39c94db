package helpers

import (
	"io"
	"path/filepath"

	"github.com/MountWatchProject/mountwatch-core/pkg/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

func InitLogging(writers []io.Writer) error {
	dataDir, err := DataDir()
	if err != nil {
		return err
	}

	logWriters := []io.Writer{&lumberjack.Logger{
		Filename:   filepath.Join(dataDir, config.LogFile),
		MaxSize:    1,
		MaxBackups: 2,
	}}

	if len(writers) > 0 {
		logWriters = append(logWriters, writers...)
	}

	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	log.Logger = log.Output(io.MultiWriter(logWriters...)).
		With().Timestamp().Caller().Logger()

	return nil
}
