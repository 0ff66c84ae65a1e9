package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/linkhubapp/linkhub/internal/models"
	"github.com/linkhubapp/linkhub/internal/qr"
)

// QRHandler serves QR code generation and the caller's code library.
type QRHandler struct {
	db *gorm.DB
}

// NewQRHandler constructs a QRHandler.
func NewQRHandler(db *gorm.DB) *QRHandler {
	return &QRHandler{db: db}
}

func qrRecord(code *models.QRCode) gin.H {
	return gin.H{
		"id":         code.ID,
		"source_url": code.SourceURL,
		"qrCodeUrl":  code.ImageData,
		"scans":      code.Scans,
		"created_at": code.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// generateQRRequest defines the body for rendering a QR code.
type generateQRRequest struct {
	LongURL string `json:"longUrl"`
}

// Generate renders a QR image for the URL and stores it in the caller's
// library.
func (h *QRHandler) Generate(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		unauthorized(c, "")
		return
	}

	var body generateQRRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		badRequest(c, "invalid json", nil)
		return
	}

	dataURL, errEncode := qr.Encode(body.LongURL)
	if errEncode != nil {
		if errors.Is(errEncode, qr.ErrEncodingFailed) {
			badRequest(c, "url cannot be encoded", gin.H{"longUrl": "must be an absolute http(s) url of at most 2048 chars"})
			return
		}
		internalError(c, errEncode)
		return
	}

	code := models.QRCode{
		UserID:    user.ID,
		SourceURL: body.LongURL,
		ImageData: dataURL,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&code).Error; errCreate != nil {
		internalError(c, errCreate)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"qrCodeUrl": dataURL, "id": code.ID})
}

// MyQRCodes lists the caller's stored QR codes, newest first.
func (h *QRHandler) MyQRCodes(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		unauthorized(c, "")
		return
	}

	var codes []models.QRCode
	errFind := h.db.WithContext(c.Request.Context()).
		Where("user_id = ?", user.ID).
		Order("created_at DESC").
		Find(&codes).Error
	if errFind != nil {
		internalError(c, errFind)
		return
	}

	records := make([]gin.H, 0, len(codes))
	for i := range codes {
		records = append(records, qrRecord(&codes[i]))
	}
	c.JSON(http.StatusOK, gin.H{"qrcodes": records})
}

// Delete removes one of the caller's QR codes. Foreign codes look the
// same as missing ones.
func (h *QRHandler) Delete(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		unauthorized(c, "")
		return
	}

	id, errParse := strconv.ParseUint(c.Param("id"), 10, 64)
	if errParse != nil {
		notFound(c, "qr code not found")
		return
	}

	res := h.db.WithContext(c.Request.Context()).
		Where("id = ? AND user_id = ?", id, user.ID).
		Delete(&models.QRCode{})
	if res.Error != nil {
		internalError(c, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		notFound(c, "qr code not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "qr code deleted"})
}
