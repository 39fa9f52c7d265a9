// Package ocr extracts structured receipt data from attachments using a
// vision model. PDFs are rasterized page by page; images are sent directly.
package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/fieldserve/workorder/internal/domain/entity"
	"github.com/gen2brain/go-fitz"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Pages beyond this are ignored to bound request size
const maxVisionPages = 2

// VisionReader converts receipt attachments to images and extracts fields
// with a vision-capable chat model
type VisionReader struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewVisionReader creates a reader backed by the given API key and model
func NewVisionReader(apiKey, model string, logger *zap.Logger) *VisionReader {
	return &VisionReader{
		client: openai.NewClient(apiKey),
		model:  model,
		logger: logger,
	}
}

// ReadAndExtract rasterizes the attachment and extracts receipt fields
func (r *VisionReader) ReadAndExtract(ctx context.Context, path string) (*entity.OCRResult, error) {
	r.logger.Info("Reading attachment for receipt extraction", zap.String("path", path))

	images, err := r.toImages(path)
	if err != nil {
		r.logger.Error("Failed to rasterize attachment", zap.Error(err))
		return nil, fmt.Errorf("failed to rasterize attachment: %w", err)
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("no pages extracted from %s", path)
	}

	if len(images) > maxVisionPages {
		images = images[:maxVisionPages]
	}

	return r.extractWithVision(ctx, images)
}

// toImages converts the attachment to one JPEG per page
func (r *VisionReader) toImages(path string) ([][]byte, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("attachment not found: %s", path)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".pdf" {
		if ext == ".jpg" || ext == ".jpeg" || ext == ".png" {
			return r.readImageFile(path)
		}
		return nil, fmt.Errorf("unsupported attachment type: %s", ext)
	}

	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	var images [][]byte
	pageCount := doc.NumPage()

	r.logger.Debug("Rasterizing PDF", zap.Int("total_pages", pageCount))

	for pageNum := 0; pageNum < pageCount; pageNum++ {
		img, err := doc.Image(pageNum)
		if err != nil {
			r.logger.Warn("Failed to rasterize page",
				zap.Int("page", pageNum),
				zap.Error(err))
			continue
		}

		imgBytes, err := encodeJPEG(img)
		if err != nil {
			r.logger.Warn("Failed to encode page",
				zap.Int("page", pageNum),
				zap.Error(err))
			continue
		}

		images = append(images, imgBytes)
	}

	return images, nil
}

func (r *VisionReader) readImageFile(path string) ([][]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer file.Close()

	var img image.Image
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		img, err = jpeg.Decode(file)
	case ".png":
		img, err = png.Decode(file)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	imgBytes, err := encodeJPEG(img)
	if err != nil {
		return nil, err
	}
	return [][]byte{imgBytes}, nil
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("failed to encode JPEG: %w", err)
	}
	return buf.Bytes(), nil
}

// extractWithVision sends the page images to the vision model and parses the
// structured response
func (r *VisionReader) extractWithVision(ctx context.Context, images [][]byte) (*entity.OCRResult, error) {
	r.logger.Info("Extracting receipt data with vision model", zap.Int("image_count", len(images)))

	contentParts := []openai.ChatMessagePart{
		{
			Type: openai.ChatMessagePartTypeText,
			Text: visionPrompt,
		},
	}

	for i, imgData := range images {
		contentParts = append(contentParts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    fmt.Sprintf("data:image/jpeg;base64,%s", base64.StdEncoding.EncodeToString(imgData)),
				Detail: openai.ImageURLDetailHigh,
			},
		})
		r.logger.Debug("Added page to request", zap.Int("page", i+1), zap.Int("size_bytes", len(imgData)))
	}

	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       r.model,
		MaxTokens:   4096,
		Temperature: 0.1,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are an expert at reading vendor receipts and purchase invoices. You extract vendor names, totals, dates, and line items with high accuracy and report a confidence score for every field. Always respond with valid JSON.",
			},
			{
				Role:         openai.ChatMessageRoleUser,
				MultiContent: contentParts,
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		r.logger.Error("Vision API call failed", zap.Error(err))
		return nil, fmt.Errorf("vision API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from vision API")
	}

	content := resp.Choices[0].Message.Content
	r.logger.Debug("Vision response received", zap.Int("content_length", len(content)))

	var result entity.OCRResult
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		r.logger.Error("Failed to parse vision response",
			zap.Error(err),
			zap.String("content", content))
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if result.Vendor.Value == "" && result.Total.Value == "" {
		r.logger.Warn("Could not extract vendor or total",
			zap.String("raw_response", content))
	}

	r.logger.Info("Receipt data extracted",
		zap.String("vendor", result.Vendor.Value),
		zap.String("total", result.Total.Value),
		zap.Int("line_items", len(result.LineItems)))

	return &result, nil
}

const visionPrompt = `Carefully examine this receipt image and extract its contents.

Extract the following fields. For EVERY field report a confidence score
between 0 and 1 reflecting how certain you are of the value.

RECEIPT FIELDS:
- vendor: the merchant or vendor name printed on the receipt
- total: the final total amount charged, as a plain decimal string without currency symbols
- date: the purchase date in YYYY-MM-DD format

LINE ITEMS - extract ALL visible line items as an array:
- description: the item description as printed
- amount: the line amount as a plain decimal string

Return a JSON object with this exact structure:
{
  "vendor": {"value": "string", "confidence": number},
  "total": {"value": "string", "confidence": number},
  "date": {"value": "YYYY-MM-DD", "confidence": number},
  "line_items": [{"description": {"value": "string", "confidence": number}, "amount": {"value": "string", "confidence": number}}]
}

IMPORTANT:
- Extract EXACTLY what you see. Do not guess or make up values.
- For amounts, use numbers without currency symbols.
- If a field is not visible or unclear, use an empty string and a low confidence.`
