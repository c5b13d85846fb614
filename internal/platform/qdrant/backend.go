package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/graphrag-backend/internal/platform/logger"
	"github.com/yungbote/graphrag-backend/internal/platform/storeerr"
	"github.com/yungbote/graphrag-backend/internal/platform/vectorstore"
)

const (
	storeName = "qdrant"

	payloadNamespaceKey = "_grb_namespace"
	payloadIndexKey     = "_grb_index"
	payloadVectorIDKey  = "_grb_vector_id"

	maxErrorBodyBytes = 1024
)

var pointIDNamespaceUUID = uuid.MustParse("7c9f33a1-64f8-4a02-9b6e-cbd6f3a41c27")

// backend implements vectorstore.Backend against the Qdrant REST API.
// Tenant namespaces and index names live in point payloads; one collection
// holds everything.
type backend struct {
	log      *logger.Logger
	cfg      Config
	baseURL  string
	nsPrefix string
	distance string
	http     *http.Client
}

type envelope struct {
	Result json.RawMessage `json:"result"`
	Status json.RawMessage `json:"status"`
	Time   float64         `json:"time"`
}

type searchResultItem struct {
	ID      json.RawMessage `json:"id"`
	Score   float64         `json:"score"`
	Payload map[string]any  `json:"payload"`
}

func NewBackend(log *logger.Logger, cfg Config) (vectorstore.Backend, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	b := &backend{
		log:      log.With("service", "QdrantBackend"),
		cfg:      cfg,
		baseURL:  strings.TrimRight(cfg.URL, "/"),
		nsPrefix: strings.TrimSpace(cfg.NamespacePrefix),
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	if err := b.verifyReady(context.Background()); err != nil {
		return nil, err
	}

	log.Info(
		"Qdrant vector backend ready",
		"url", b.baseURL,
		"collection", cfg.Collection,
		"namespace_prefix", b.nsPrefix,
		"vector_dim", cfg.VectorDim,
		"distance", b.distance,
	)
	return b, nil
}

func (b *backend) Upsert(ctx context.Context, namespace, index string, items []vectorstore.Item) error {
	const op = "upsert"
	if len(items) == 0 {
		return nil
	}

	qualifiedNS := b.qualifyNamespace(namespace)
	points := make([]map[string]any, 0, len(items))
	for _, item := range items {
		vectorID := strings.TrimSpace(item.ID)
		if vectorID == "" {
			return storeerr.New(storeName, op, storeerr.CodeValidation, "vector id is required", nil)
		}
		if len(item.Values) == 0 {
			return storeerr.New(storeName, op, storeerr.CodeValidation,
				fmt.Sprintf("vector %q has empty values", vectorID), nil)
		}
		if b.cfg.VectorDim > 0 && len(item.Values) != b.cfg.VectorDim {
			return storeerr.New(storeName, op, storeerr.CodeValidation,
				fmt.Sprintf("vector %q dimension mismatch: expected=%d got=%d",
					vectorID, b.cfg.VectorDim, len(item.Values)), nil)
		}
		payload := clonePayload(item.Metadata)
		payload[payloadNamespaceKey] = qualifiedNS
		payload[payloadIndexKey] = index
		payload[payloadVectorIDKey] = vectorID
		points = append(points, map[string]any{
			"id":      b.pointID(qualifiedNS, index, vectorID),
			"vector":  item.Values,
			"payload": payload,
		})
	}

	req := map[string]any{"points": points}
	return b.doJSON(ctx, op, http.MethodPut, b.collectionPath("/points?wait=true"), req, nil)
}

func (b *backend) Query(ctx context.Context, namespace, index string, q []float32, topK int) ([]vectorstore.Match, error) {
	const op = "query"
	if len(q) == 0 {
		return nil, storeerr.New(storeName, op, storeerr.CodeValidation, "query vector required", nil)
	}
	if b.cfg.VectorDim > 0 && len(q) != b.cfg.VectorDim {
		return nil, storeerr.New(storeName, op, storeerr.CodeValidation,
			fmt.Sprintf("query vector dimension mismatch: expected=%d got=%d", b.cfg.VectorDim, len(q)), nil)
	}
	if topK <= 0 {
		topK = 10
	}

	qualifiedNS := b.qualifyNamespace(namespace)
	req := map[string]any{
		"vector":       q,
		"limit":        topK,
		"with_payload": true,
		"with_vector":  false,
		"filter": map[string]any{
			"must": []any{
				matchCondition(payloadNamespaceKey, qualifiedNS),
				matchCondition(payloadIndexKey, index),
			},
		},
	}
	var rawResults []searchResultItem
	if err := b.doJSON(ctx, op, http.MethodPost, b.collectionPath("/points/search"), req, &rawResults); err != nil {
		return nil, err
	}

	out := make([]vectorstore.Match, 0, len(rawResults))
	for _, item := range rawResults {
		id := b.extractVectorID(item)
		if id == "" {
			continue
		}
		out = append(out, vectorstore.Match{
			ID:       id,
			Score:    b.normalizeScore(item.Score),
			Metadata: userPayload(item.Payload),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score == out[j].Score {
			return out[i].ID < out[j].ID
		}
		return out[i].Score > out[j].Score
	})
	return out, nil
}

func (b *backend) DeleteNamespace(ctx context.Context, namespace string) error {
	const op = "delete_namespace"
	qualifiedNS := b.qualifyNamespace(namespace)
	req := map[string]any{
		"filter": map[string]any{
			"must": []any{
				matchCondition(payloadNamespaceKey, qualifiedNS),
			},
		},
	}
	return b.doJSON(ctx, op, http.MethodPost, b.collectionPath("/points/delete?wait=true"), req, nil)
}

func (b *backend) verifyReady(ctx context.Context) error {
	const op = "bootstrap_verify"

	readyReq, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/readyz", nil)
	if err != nil {
		return storeerr.New(storeName, op, storeerr.CodeTransportFailed, "build ready request failed", err)
	}
	readyResp, err := b.http.Do(readyReq)
	if err != nil {
		return storeerr.Classify(storeName, op, "qdrant ready check failed", err)
	}
	_ = readyResp.Body.Close()
	if readyResp.StatusCode < 200 || readyResp.StatusCode >= 300 {
		return &storeerr.OperationError{
			Store:      storeName,
			Code:       storeerr.CodeUnavailable,
			Operation:  op,
			StatusCode: readyResp.StatusCode,
			Message:    fmt.Sprintf("qdrant ready check returned status=%d", readyResp.StatusCode),
		}
	}

	var result struct {
		Config struct {
			Params struct {
				Vectors struct {
					Size     int    `json:"size"`
					Distance string `json:"distance"`
				} `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	}
	if err := b.doJSON(ctx, op, http.MethodGet, b.collectionPath(""), nil, &result); err != nil {
		return err
	}

	size := result.Config.Params.Vectors.Size
	if size != 0 && size != b.cfg.VectorDim {
		return storeerr.New(storeName, op, storeerr.CodeValidation,
			fmt.Sprintf("qdrant collection %q vector size mismatch: expected=%d actual=%d",
				b.cfg.Collection, b.cfg.VectorDim, size), nil)
	}
	b.distance = strings.TrimSpace(result.Config.Params.Vectors.Distance)
	return nil
}

func (b *backend) doJSON(ctx context.Context, op, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(in); err != nil {
			return storeerr.New(storeName, op, storeerr.CodeEncodeFailed, "encode request failed", err)
		}
		body = &buf
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, body)
	if err != nil {
		return storeerr.New(storeName, op, storeerr.CodeTransportFailed, "build request failed", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.http.Do(req)
	if err != nil {
		return storeerr.Classify(storeName, op, "qdrant request failed", err)
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 10*maxErrorBodyBytes))
	if readErr != nil {
		return storeerr.New(storeName, op, storeerr.CodeDecodeFailed, "read response failed", readErr)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &storeerr.OperationError{
			Store:      storeName,
			Code:       storeerr.CodeQueryFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("qdrant http status=%d body=%q", resp.StatusCode, truncateBody(raw)),
		}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return storeerr.New(storeName, op, storeerr.CodeDecodeFailed, "decode qdrant envelope failed", err)
	}
	if statusErr := parseEnvelopeStatus(env.Status); statusErr != "" {
		return &storeerr.OperationError{
			Store:      storeName,
			Code:       storeerr.CodeQueryFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    statusErr,
		}
	}

	if out == nil {
		return nil
	}
	if len(env.Result) == 0 || string(env.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return storeerr.New(storeName, op, storeerr.CodeDecodeFailed, "decode qdrant result failed", err)
	}
	return nil
}

func parseEnvelopeStatus(raw json.RawMessage) string {
	status := strings.TrimSpace(string(raw))
	if status == "" || status == "null" {
		return ""
	}

	var statusString string
	if err := json.Unmarshal(raw, &statusString); err == nil {
		if strings.EqualFold(statusString, "ok") || strings.EqualFold(statusString, "acknowledged") || strings.EqualFold(statusString, "completed") {
			return ""
		}
		return fmt.Sprintf("qdrant status=%q", statusString)
	}

	var statusObject struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &statusObject); err == nil {
		if strings.TrimSpace(statusObject.Error) != "" {
			return strings.TrimSpace(statusObject.Error)
		}
	}

	return fmt.Sprintf("qdrant status=%s", status)
}

func truncateBody(raw []byte) string {
	if len(raw) <= maxErrorBodyBytes {
		return string(raw)
	}
	return string(raw[:maxErrorBodyBytes]) + "..."
}

func clonePayload(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// userPayload strips the adapter's bookkeeping keys before matches are
// handed back to callers.
func userPayload(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		switch k {
		case payloadNamespaceKey, payloadIndexKey, payloadVectorIDKey:
			continue
		}
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func matchCondition(key, value string) map[string]any {
	return map[string]any{
		"key":   key,
		"match": map[string]any{"value": value},
	}
}

func (b *backend) qualifyNamespace(namespace string) string {
	ns := strings.TrimSpace(namespace)
	if ns == "" {
		return b.nsPrefix
	}
	return b.nsPrefix + ":" + ns
}

func (b *backend) pointID(qualifiedNS, index, vectorID string) string {
	deterministic := uuid.NewSHA1(pointIDNamespaceUUID, []byte(qualifiedNS+"|"+index+"|"+vectorID))
	return deterministic.String()
}

func (b *backend) extractVectorID(item searchResultItem) string {
	if payloadID, ok := item.Payload[payloadVectorIDKey].(string); ok {
		id := strings.TrimSpace(payloadID)
		if id != "" {
			return id
		}
	}
	return decodePointID(item.ID)
}

func decodePointID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var idString string
	if err := json.Unmarshal(raw, &idString); err == nil {
		return strings.TrimSpace(idString)
	}
	var idNumber int64
	if err := json.Unmarshal(raw, &idNumber); err == nil {
		return fmt.Sprintf("%d", idNumber)
	}
	return strings.TrimSpace(string(raw))
}

func (b *backend) normalizeScore(score float64) float64 {
	switch strings.ToLower(strings.TrimSpace(b.distance)) {
	case "euclid", "manhattan":
		if score < 0 {
			score = -score
		}
		return 1.0 / (1.0 + score)
	default:
		return score
	}
}

func (b *backend) collectionPath(suffix string) string {
	path := "/collections/" + b.cfg.Collection
	if strings.TrimSpace(suffix) == "" {
		return path
	}
	return path + suffix
}
