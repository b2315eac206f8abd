package handlers

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"academy-go/pkg/logger"

	"github.com/disintegration/imaging"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	maxImageWidth  = 1200
	jpegQuality    = 80
	maxLicenseSize = 5 << 20 // 5MB
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
}

var licenseExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".pdf":  true,
}

// UploadFile stores an image under the public uploads directory.
// Images wider than maxImageWidth are downscaled and re-encoded as JPEG.
func (h *Handler) UploadFile(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{
			"message": "No file uploaded",
			"success": false,
			"status":  400,
		})
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if !imageExtensions[ext] {
		return c.Status(400).JSON(fiber.Map{
			"message": "Only image files are allowed",
			"success": false,
			"status":  400,
		})
	}

	if err := os.MkdirAll(h.UploadDir, 0o755); err != nil {
		logger.ErrorLogger.Error("Error creating upload directory", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error saving file",
			"success": false,
			"status":  500,
		})
	}

	var name string
	if ext == ".gif" {
		// Animated gifs lose frames when re-encoded, keep them as is.
		name = uuid.New().String() + ext
		if err := c.SaveFile(fileHeader, filepath.Join(h.UploadDir, name)); err != nil {
			logger.ErrorLogger.Error("Error saving file", zap.Error(err))
			return c.Status(500).JSON(fiber.Map{
				"message": "Error saving file",
				"success": false,
				"status":  500,
			})
		}
	} else {
		src, err := fileHeader.Open()
		if err != nil {
			logger.ErrorLogger.Error("Error opening uploaded file", zap.Error(err))
			return c.Status(500).JSON(fiber.Map{
				"message": "Error saving file",
				"success": false,
				"status":  500,
			})
		}
		defer src.Close()

		img, err := imaging.Decode(src, imaging.AutoOrientation(true))
		if err != nil {
			return c.Status(400).JSON(fiber.Map{
				"message": "Invalid image file",
				"success": false,
				"status":  400,
			})
		}
		if img.Bounds().Dx() > maxImageWidth {
			img = imaging.Resize(img, maxImageWidth, 0, imaging.Lanczos)
		}

		name = uuid.New().String() + ".jpg"
		if err := imaging.Save(img, filepath.Join(h.UploadDir, name), imaging.JPEGQuality(jpegQuality)); err != nil {
			logger.ErrorLogger.Error("Error saving image", zap.Error(err))
			return c.Status(500).JSON(fiber.Map{
				"message": "Error saving file",
				"success": false,
				"status":  500,
			})
		}
	}

	logger.AuditLogger.Info("File uploaded", zap.String("file", name))
	return c.Status(201).JSON(fiber.Map{
		"message": "File uploaded successfully",
		"success": true,
		"status":  201,
		"data": fiber.Map{
			"url": "/uploads/" + name,
		},
	})
}

// GetFile serves a previously uploaded file.
func (h *Handler) GetFile(c *fiber.Ctx) error {
	name := filepath.Base(c.Params("filename"))
	if name == "." || name == "/" {
		return c.Status(400).JSON(fiber.Map{
			"message": "Invalid file name",
			"success": false,
			"status":  400,
		})
	}

	path := filepath.Join(h.UploadDir, name)
	if _, err := os.Stat(path); err != nil {
		return c.Status(404).JSON(fiber.Map{
			"message": "File not found",
			"success": false,
			"status":  404,
		})
	}
	return c.SendFile(path)
}

// saveBusinessLicense validates and stores a business license document,
// returning the stored file name.
func (h *Handler) saveBusinessLicense(fileHeader *multipart.FileHeader) (string, error) {
	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if !licenseExtensions[ext] {
		return "", fmt.Errorf("unsupported file type %q", ext)
	}
	if fileHeader.Size > maxLicenseSize {
		return "", fmt.Errorf("file exceeds %d bytes", maxLicenseSize)
	}

	if err := os.MkdirAll(h.LicenseDir, 0o755); err != nil {
		return "", fmt.Errorf("creating license directory: %w", err)
	}

	src, err := fileHeader.Open()
	if err != nil {
		return "", fmt.Errorf("opening uploaded file: %w", err)
	}
	defer src.Close()

	name := uuid.New().String() + ext
	dst, err := os.Create(filepath.Join(h.LicenseDir, name))
	if err != nil {
		return "", fmt.Errorf("creating license file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("writing license file: %w", err)
	}
	return name, nil
}
