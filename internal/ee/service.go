package ee

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"

	"utiligee/internal/expr"
)

const (
	DefaultBaseURL = "https://earthengine.googleapis.com"
	apiVersion     = "v1"
	geoTIFF        = "GEO_TIFF"
)

var scopes = []string{
	"https://www.googleapis.com/auth/earthengine",
	"https://www.googleapis.com/auth/cloud-platform",
}

type Config struct {
	// Project is the cloud project that owns the requests, with or without
	// the "projects/" prefix.
	Project         string
	CredentialsFile string
	// Endpoint overrides DefaultBaseURL, mainly for tests.
	Endpoint string
}

// Service is a Session backed by the Earth Engine REST API.
type Service struct {
	client  *http.Client
	project string
	baseURL string
}

func NewService(ctx context.Context, cfg Config) (*Service, error) {
	if cfg.Project == "" {
		return nil, fmt.Errorf("earth engine: project is required")
	}
	ts, err := tokenSource(ctx, cfg.CredentialsFile)
	if err != nil {
		return nil, err
	}
	return newService(oauth2.NewClient(ctx, ts), cfg.Project, cfg.Endpoint), nil
}

func newService(client *http.Client, project, endpoint string) *Service {
	baseURL := DefaultBaseURL
	if endpoint != "" {
		baseURL = strings.TrimSuffix(endpoint, "/")
	}
	return &Service{client: client, project: projectName(project), baseURL: baseURL}
}

func tokenSource(ctx context.Context, credentialsFile string) (oauth2.TokenSource, error) {
	if credentialsFile == "" {
		ts, err := google.DefaultTokenSource(ctx, scopes...)
		if err != nil {
			return nil, fmt.Errorf("default credentials: %w", err)
		}
		return ts, nil
	}
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, err
	}
	creds, err := google.CredentialsFromJSON(ctx, data, scopes...)
	if err != nil {
		return nil, fmt.Errorf("credentials %s: %w", credentialsFile, err)
	}
	return creds.TokenSource, nil
}

func projectName(project string) string {
	if strings.HasPrefix(project, "projects/") {
		return project
	}
	return "projects/" + project
}

type computeValueRequest struct {
	Expression *expr.Expression `json:"expression"`
}

type computeValueResponse struct {
	Result any `json:"result"`
}

type doubleRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

type visualizationOptions struct {
	Ranges []doubleRange `json:"ranges"`
}

type earthEngineMap struct {
	Name                 string                `json:"name,omitempty"`
	Expression           *expr.Expression      `json:"expression,omitempty"`
	FileFormat           string                `json:"fileFormat,omitempty"`
	VisualizationOptions *visualizationOptions `json:"visualizationOptions,omitempty"`
}

type driveDestination struct {
	Folder         string `json:"folder,omitempty"`
	FilenamePrefix string `json:"filenamePrefix,omitempty"`
}

type cloudStorageDestination struct {
	Bucket         string `json:"bucket"`
	FilenamePrefix string `json:"filenamePrefix,omitempty"`
}

type imageFileExportOptions struct {
	FileFormat              string                   `json:"fileFormat"`
	DriveDestination        *driveDestination        `json:"driveDestination,omitempty"`
	CloudStorageDestination *cloudStorageDestination `json:"cloudStorageDestination,omitempty"`
}

type exportImageRequest struct {
	Expression        *expr.Expression        `json:"expression"`
	Description       string                  `json:"description,omitempty"`
	FileExportOptions *imageFileExportOptions `json:"fileExportOptions"`
	// MaxPixels is an int64, sent as a JSON string.
	MaxPixels int64  `json:"maxPixels,omitempty,string"`
	RequestID string `json:"requestId,omitempty"`
}

type operation struct {
	Name     string          `json:"name"`
	Done     bool            `json:"done"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
	Error    *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type listOperationsResponse struct {
	Operations    []operation `json:"operations"`
	NextPageToken string      `json:"nextPageToken"`
}

func (s *Service) ComputeValue(ctx context.Context, node *expr.Node) (any, error) {
	e, err := expr.Encode(node)
	if err != nil {
		return nil, err
	}
	var resp computeValueResponse
	if err := s.do(ctx, http.MethodPost, s.project+"/value:compute", nil, computeValueRequest{Expression: e}, &resp); err != nil {
		return nil, fmt.Errorf("compute value: %w", err)
	}
	return resp.Result, nil
}

func (s *Service) CreateMap(ctx context.Context, node *expr.Node, vis VisParams, label string) (MapLayer, error) {
	e, err := expr.Encode(node)
	if err != nil {
		return MapLayer{}, err
	}
	req := earthEngineMap{
		Expression: e,
		FileFormat: "PNG",
		VisualizationOptions: &visualizationOptions{
			Ranges: []doubleRange{{Min: vis.Min, Max: vis.Max}},
		},
	}
	var m earthEngineMap
	if err := s.do(ctx, http.MethodPost, s.project+"/maps", nil, req, &m); err != nil {
		return MapLayer{}, fmt.Errorf("create map: %w", err)
	}
	logrus.WithField("map", m.Name).Debug("Map created")
	return MapLayer{
		ID:      m.Name,
		TileURL: fmt.Sprintf("%s/%s/%s/tiles/{z}/{x}/{y}", s.baseURL, apiVersion, m.Name),
		Label:   label,
		Vis:     vis,
	}, nil
}

func (s *Service) ExportImage(ctx context.Context, req ExportImage) (Job, error) {
	e, err := expr.Encode(req.Expression)
	if err != nil {
		return Job{}, err
	}
	format := req.FileFormat
	if format == "" {
		format = geoTIFF
	}
	fileOpts := &imageFileExportOptions{FileFormat: format}
	switch req.Destination.Kind {
	case CloudStorage:
		fileOpts.CloudStorageDestination = &cloudStorageDestination{
			Bucket:         req.Destination.Bucket,
			FilenamePrefix: req.Destination.FilenamePrefix,
		}
	default:
		fileOpts.DriveDestination = &driveDestination{
			Folder:         req.Destination.Folder,
			FilenamePrefix: req.Destination.FilenamePrefix,
		}
	}
	body := exportImageRequest{
		Expression:        e,
		Description:       req.Description,
		FileExportOptions: fileOpts,
		MaxPixels:         req.MaxPixels,
		RequestID:         req.RequestID,
	}
	var op operation
	if err := s.do(ctx, http.MethodPost, s.project+"/image:export", nil, body, &op); err != nil {
		return Job{}, fmt.Errorf("export image %q: %w", req.Description, err)
	}
	return jobFromOperation(op)
}

func (s *Service) Operation(ctx context.Context, id string) (Job, error) {
	var op operation
	if err := s.do(ctx, http.MethodGet, s.operationName(id), nil, nil, &op); err != nil {
		return Job{}, fmt.Errorf("get operation %s: %w", id, err)
	}
	return jobFromOperation(op)
}

func (s *Service) CancelOperation(ctx context.Context, id string) error {
	if err := s.do(ctx, http.MethodPost, s.operationName(id)+":cancel", nil, struct{}{}, nil); err != nil {
		return fmt.Errorf("cancel operation %s: %w", id, err)
	}
	return nil
}

func (s *Service) ListOperations(ctx context.Context) ([]Job, error) {
	var jobs []Job
	pageToken := ""
	for {
		query := url.Values{}
		if pageToken != "" {
			query.Set("pageToken", pageToken)
		}
		var page listOperationsResponse
		if err := s.do(ctx, http.MethodGet, s.project+"/operations", query, nil, &page); err != nil {
			return nil, fmt.Errorf("list operations: %w", err)
		}
		for _, op := range page.Operations {
			job, err := jobFromOperation(op)
			if err != nil {
				return nil, err
			}
			jobs = append(jobs, job)
		}
		if page.NextPageToken == "" {
			return jobs, nil
		}
		pageToken = page.NextPageToken
	}
}

// operationName accepts either a full resource name or the bare task id.
func (s *Service) operationName(id string) string {
	if strings.HasPrefix(id, "projects/") {
		return id
	}
	return s.project + "/operations/" + id
}

// do sends one JSON request to /v1/<resource>. Non-2xx responses come back
// as *googleapi.Error.
func (s *Service) do(ctx context.Context, method, resource string, query url.Values, in, out any) error {
	u := fmt.Sprintf("%s/%s/%s", s.baseURL, apiVersion, resource)
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	logrus.WithFields(logrus.Fields{"method": method, "resource": resource}).Debug("Earth Engine request")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if err := googleapi.CheckResponse(resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

type operationMetadata struct {
	State           State    `json:"state"`
	Description     string   `json:"description"`
	Progress        float64  `json:"progress"`
	CreateTime      string   `json:"createTime"`
	UpdateTime      string   `json:"updateTime"`
	DestinationURIs []string `json:"destinationUris"`
}

func jobFromOperation(op operation) (Job, error) {
	var md operationMetadata
	if len(op.Metadata) > 0 {
		if err := json.Unmarshal(op.Metadata, &md); err != nil {
			return Job{}, fmt.Errorf("operation %s metadata: %w", op.Name, err)
		}
	}
	job := Job{
		ID:              op.Name,
		Description:     md.Description,
		State:           md.State,
		Progress:        md.Progress,
		Done:            op.Done,
		DestinationURIs: md.DestinationURIs,
		CreateTime:      parseTime(md.CreateTime),
		UpdateTime:      parseTime(md.UpdateTime),
	}
	if op.Error != nil {
		job.Error = op.Error.Message
		if job.State == "" {
			job.State = StateFailed
		}
	}
	if job.State == "" {
		job.State = StatePending
		if op.Done {
			job.State = StateSucceeded
		}
	}
	return job, nil
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
