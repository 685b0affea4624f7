package recipe

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"go.starlark.net/starlark"

	"github.com/racecomms/jelbuild/pkg/extbuilder"
)

func log(ctx context.Context) *zerolog.Logger {
	return extbuilder.Log(ctx)
}

// resolvePath turns a recipe path into an absolute one. "//" refers to the code dir,
// relative paths are relative to the source dir.
func resolvePath(ctx *recipeCtx, path string) string {
	args := ctx.builder.Args
	switch {
	case strings.HasPrefix(path, "//"):
		return filepath.Join(args.CodeDir, path[2:])
	case filepath.IsAbs(path):
		return filepath.Clean(path)
	default:
		return filepath.Join(args.SourceDir, path)
	}
}

type starlarkIterable interface {
	Len() int
	Iterate() starlark.Iterator
}

func iterable2stringSlice(input starlark.Value, field string) ([]string, error) {
	if input == nil || input == starlark.None {
		return []string{}, nil
	}

	iterable, ok := input.(starlarkIterable)
	if !ok {
		return nil, eris.Errorf("expected %s to be a list or tuple but found %s", field, input.Type())
	}

	result := make([]string, 0, iterable.Len())
	iter := iterable.Iterate()
	defer iter.Done()

	var item starlark.Value
	for iter.Next(&item) {
		value, ok := item.(starlark.String)
		if !ok {
			return nil, eris.Errorf("expected all items in %s to be strings but found %s", field, item.Type())
		}
		result = append(result, value.GoString())
	}
	return result, nil
}

func dict2stringMap(dict *starlark.Dict, field string) (map[string]string, error) {
	result := map[string]string{}
	if dict == nil {
		return result, nil
	}

	for _, item := range dict.Items() {
		key, ok := item[0].(starlark.String)
		if !ok {
			return nil, eris.Errorf("found key type %s in %s but only strings are supported", item[0].Type(), field)
		}

		switch value := item[1].(type) {
		case starlark.String:
			result[key.GoString()] = value.GoString()
		case starlark.Int:
			result[key.GoString()] = value.String()
		default:
			return nil, eris.Errorf("found value of type %s for key %s in %s but only strings are supported",
				item[1].Type(), key.GoString(), field)
		}
	}
	return result, nil
}

func stringMap2dict(values map[string]string) (*starlark.Dict, error) {
	dict := starlark.NewDict(len(values))
	for k, v := range values {
		err := dict.SetKey(starlark.String(k), starlark.String(v))
		if err != nil {
			return nil, err
		}
	}
	return dict, nil
}

// commandParts converts a command list into argv. Leading KEY=VALUE items are
// moved into env like a shell would do for "CFLAGS=-O2 ./configure".
func commandParts(cmd starlark.Value, env map[string]string) ([]string, error) {
	parts, err := iterable2stringSlice(cmd, "command")
	if err != nil {
		return nil, err
	}

	idx := 0
	for ; idx < len(parts); idx++ {
		key, value, ok := strings.Cut(parts[idx], "=")
		if !ok || key == "" || strings.ContainsAny(key, "/ -.") {
			break
		}
		env[key] = value
	}

	if idx == len(parts) {
		return nil, eris.New("command is empty")
	}

	return parts[idx:], nil
}

func position(thread *starlark.Thread) string {
	ctx := getCtx(thread)
	pos := thread.CallFrame(1).Pos
	return fmt.Sprintf("%s:%d:%d", filepath.Base(ctx.filename), pos.Line, pos.Col)
}
