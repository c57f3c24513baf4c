// pipeline provider: chains the file-disguise and bulk-upload providers
// into one job (hide payload files, then upload the disguised containers),
// with its own progress sub-scaling. Grounded on
// pipeline_service.py::run_disguise_upload_pipeline.
package adapters

import (
	"context"
	"fmt"
	"os"

	"github.com/evalgo/gphotoctl/internal/model"
)

// PipelineAdapter implements the pipeline provider's disguise_upload
// operation by composing FileDisguiseAdapter and BulkUploadAdapter rather
// than reimplementing either step.
type PipelineAdapter struct {
	disguise *FileDisguiseAdapter
	upload   *BulkUploadAdapter
}

func NewPipelineAdapter(disguise *FileDisguiseAdapter, upload *BulkUploadAdapter) *PipelineAdapter {
	return &PipelineAdapter{disguise: disguise, upload: upload}
}

func (a *PipelineAdapter) CanHandle(p model.Provider) bool {
	return p == model.ProviderPipeline
}

func (a *PipelineAdapter) Run(ctx context.Context, account *model.Account, job *model.Job, dryRun bool, report ProgressFunc) (model.JSONMap, error) {
	op := trimProviderPrefix(job.Operation, "pipeline")
	if op != "disguise_upload" {
		return nil, fmt.Errorf("pipeline: unsupported operation %q", job.Operation)
	}

	inputFiles := strSliceParam(job.Params["input_files"])
	if len(inputFiles) == 0 {
		return nil, fmt.Errorf("pipeline: disguise_upload requires params.input_files[]")
	}
	disguiseType := getStringParam(job.Params, "disguise_type", "image")
	separator := getStringParam(job.Params, "separator", "FILE_DATA_BEGIN")

	outputPolicy, _ := job.Params["output_policy"].(map[string]interface{})
	keepArtifacts, _ := outputPolicy["keep_artifacts"].(bool)
	configuredOutput, _ := outputPolicy["output_dir"].(string)

	uploadOptions, _ := job.Params["bulk_upload_options"].(map[string]interface{})

	if dryRun {
		report(1.0, fmt.Sprintf("dry run: would disguise and upload %d files", len(inputFiles)))
		return model.JSONMap{"dryRun": true, "inputCount": len(inputFiles), "outputDir": configuredOutput}, nil
	}

	var outputDir string
	var tempDir string
	if configuredOutput != "" {
		outputDir = configuredOutput
		if err := os.MkdirAll(outputDir, 0o755); err != nil {
			return nil, fmt.Errorf("pipeline: create output dir: %w", err)
		}
	} else {
		dir, err := os.MkdirTemp("", "gphotoctl_disguise_")
		if err != nil {
			return nil, fmt.Errorf("pipeline: create temp dir: %w", err)
		}
		tempDir = dir
		outputDir = dir
	}

	report(0.08, "running disguise hide step")
	hideJob := &model.Job{
		AccountID: job.AccountID,
		Provider:  model.ProviderFileDisguise,
		Operation: "file-disguise.hide",
		Params: model.JSONMap{
			"files":         toInterfaceSlice(inputFiles),
			"containerType": disguiseType,
			"separator":     separator,
			"output":        outputDir,
		},
	}
	disguiseResult, err := a.disguise.Run(ctx, account, hideJob, false, scaledProgress(report, 0.08, 0.42))
	if err != nil {
		return nil, fmt.Errorf("pipeline: disguise step: %w", err)
	}
	created := strSliceParam(disguiseResult["created"])
	if len(created) == 0 {
		return nil, fmt.Errorf("pipeline: disguise step produced no output files")
	}

	report(0.55, "running bulk-upload step")
	uploadParams := model.JSONMap{"target": outputDir, "recursive": false}
	for k, v := range uploadOptions {
		uploadParams[k] = v
	}
	uploadJob := &model.Job{
		AccountID: job.AccountID,
		Provider:  model.ProviderBulkUpload,
		Operation: "bulk-upload.upload",
		Params:    uploadParams,
	}
	uploadResult, err := a.upload.Run(ctx, account, uploadJob, false, scaledProgress(report, 0.55, 0.4))
	if err != nil {
		return nil, fmt.Errorf("pipeline: upload step: %w", err)
	}

	cleaned := make([]string, 0, len(created))
	if !keepArtifacts {
		report(0.97, "cleaning up temporary artifacts")
		for _, f := range created {
			if err := os.Remove(f); err == nil {
				cleaned = append(cleaned, f)
			}
		}
		if tempDir != "" {
			_ = os.RemoveAll(tempDir)
		}
	}

	report(1.0, "pipeline completed")
	return model.JSONMap{
		"summary":        "pipeline completed",
		"processedCount": len(inputFiles),
		"successCount":   len(created),
		"failedCount":    0,
		"artifacts": model.JSONMap{
			"created": created,
			"cleaned": cleaned,
			"kept":    keepArtifacts,
		},
		"upload": uploadResult,
		"errors": []string{},
	}, nil
}

// scaledProgress maps a sub-step's own 0..1 progress into [base, base+span]
// of the parent job's progress, mirroring the lambda closures in
// run_disguise_upload_pipeline.
func scaledProgress(report ProgressFunc, base, span float64) ProgressFunc {
	return func(value float64, message string) {
		report(base+value*span, message)
	}
}

func toInterfaceSlice(in []string) []interface{} {
	out := make([]interface{}, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
