package extbuilder

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// SetupLogger returns a logger writing to console and to the JSON log file
// <log dir>/<name>-<build id>.log. The returned closer closes the log file.
func SetupLogger(args *Args, console io.Writer, level zerolog.Level) (zerolog.Logger, io.Closer, error) {
	err := os.MkdirAll(args.LogDir, 0o755)
	if err != nil {
		return zerolog.Nop(), nil, eris.Wrapf(err, "Failed to create %s", args.LogDir)
	}

	logPath := filepath.Join(args.LogDir, args.Name+"-"+args.BuildID+".log")
	logFile, err := os.Create(logPath)
	if err != nil {
		return zerolog.Nop(), nil, eris.Wrapf(err, "Failed to create log file %s", logPath)
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(console, logFile)).
		Level(level).
		With().
		Timestamp().
		Str("build", args.BuildID).
		Str("task", args.Name+"/"+args.Target.String()).
		Logger()

	return logger, logFile, nil
}
