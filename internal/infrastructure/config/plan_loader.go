package config

import (
	"context"
	"errors"
	"os"
	"sort"
	"strings"

	cfgpkg "github.com/alexisbeaulieu97/genflow/internal/config"
	"github.com/alexisbeaulieu97/genflow/internal/domain/workflow"
	"github.com/alexisbeaulieu97/genflow/internal/ports"
	apperrors "github.com/alexisbeaulieu97/genflow/pkg/errors"
)

// FileLoader implements the PlanLoader port by reading YAML or JSON plan
// documents from disk.
type FileLoader struct {
	logger ports.Logger
}

func NewFileLoader(logger ports.Logger) *FileLoader {
	return &FileLoader{logger: logger}
}

func (l *FileLoader) Load(ctx context.Context, path string) (*workflow.Submission, error) {
	if err := contextCheck(ctx); err != nil {
		return nil, err
	}

	l.logDebug(ctx, "loading plan", map[string]interface{}{"path": path})

	doc, err := cfgpkg.ParsePlanFile(path)
	if err != nil {
		l.logError(ctx, "failed to parse plan", err, map[string]interface{}{"path": path})
		return nil, ConvertError(err, path)
	}

	if err := contextCheck(ctx); err != nil {
		return nil, err
	}

	sub := doc.Submission()
	if err := sub.Plan.Validate(); err != nil {
		l.logError(ctx, "plan failed domain validation", err, map[string]interface{}{"path": path})
		return nil, err
	}

	l.logInfo(ctx, "plan loaded", map[string]interface{}{"path": path, "steps": len(sub.Plan.Steps)})
	return &sub, nil
}

func (l *FileLoader) Validate(ctx context.Context, path string) error {
	if err := contextCheck(ctx); err != nil {
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		l.logError(ctx, "plan path stat failed", err, map[string]interface{}{"path": path})
		return ConvertError(err, path)
	}
	if info.IsDir() {
		return workflow.NewError(workflow.ErrCodeValidation, "plan path is a directory", nil, map[string]interface{}{"path": path})
	}
	if _, ok := cfgpkg.FormatForPath(path); !ok {
		return workflow.NewError(workflow.ErrCodeValidation, "unsupported plan file extension", nil, map[string]interface{}{"path": path})
	}

	l.logDebug(ctx, "validating plan", map[string]interface{}{"path": path})
	_, err = l.Load(ctx, path)
	return err
}

var _ ports.PlanLoader = (*FileLoader)(nil)

// ConvertError maps parse and validation failures onto domain error codes.
func ConvertError(err error, path string) error {
	if err == nil {
		return nil
	}
	var parseErr *apperrors.ParseError
	if errors.As(err, &parseErr) {
		if errors.Is(parseErr.Err, os.ErrNotExist) {
			return workflow.NewError(workflow.ErrCodeNotFound, "plan not found", parseErr.Err, map[string]interface{}{"path": path})
		}
		return workflow.NewError(workflow.ErrCodeValidation, "invalid plan syntax", err, map[string]interface{}{"path": parseErr.Path, "line": parseErr.Line})
	}
	var valErr *apperrors.ValidationError
	if errors.As(err, &valErr) {
		context := map[string]interface{}{"path": path}
		if valErr.Field != "" {
			context["field"] = valErr.Field
		}
		code := workflow.ErrCodeValidation
		msg := strings.ToLower(valErr.Message)
		switch {
		case strings.Contains(msg, "duplicate"):
			code = workflow.ErrCodeDuplicate
		case strings.Contains(msg, "depends on"):
			code = workflow.ErrCodeDependency
		case strings.Contains(msg, "unsupported tool kind"):
			code = workflow.ErrCodeType
		case msg == "is required":
			code = workflow.ErrCodeMissing
		}
		return workflow.NewError(code, valErr.Error(), valErr.Err, context)
	}
	if os.IsNotExist(err) {
		return workflow.NewError(workflow.ErrCodeNotFound, "plan not found", err, map[string]interface{}{"path": path})
	}
	return workflow.NewError(workflow.ErrCodeInternal, "plan load failed", err, map[string]interface{}{"path": path})
}

func contextCheck(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return workflow.NewError(workflow.ErrCodeCancelled, "operation cancelled", err, nil)
	}
	return nil
}

func (l *FileLoader) logDebug(ctx context.Context, msg string, fields map[string]interface{}) {
	if l.logger == nil {
		return
	}
	l.logger.Debug(ctx, msg, flattenFields(fields)...)
}

func (l *FileLoader) logInfo(ctx context.Context, msg string, fields map[string]interface{}) {
	if l.logger == nil {
		return
	}
	l.logger.Info(ctx, msg, flattenFields(fields)...)
}

func (l *FileLoader) logError(ctx context.Context, msg string, err error, fields map[string]interface{}) {
	if l.logger == nil {
		return
	}
	payload := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		payload[k] = v
	}
	payload["error"] = err
	l.logger.Error(ctx, msg, flattenFields(payload)...)
}

func flattenFields(fields map[string]interface{}) []interface{} {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := make([]interface{}, 0, len(fields)*2)
	for _, k := range keys {
		args = append(args, k, fields[k])
	}
	return args
}
