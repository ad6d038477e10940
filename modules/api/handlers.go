package api

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	domain "github.com/example/product-catalog/domain/product"
	"github.com/example/product-catalog/modules/channel"
	"github.com/example/product-catalog/modules/photo"
	"github.com/example/product-catalog/modules/product"
	"github.com/example/product-catalog/modules/user"
	"github.com/gofiber/fiber/v2"
)

// register handles user registration.
func (m *APIModule) register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	u, err := m.services.Users.Register(c.UserContext(), req.Name, req.Email, req.Password)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(user.ToUserResponse(u))
}

// login handles user login.
func (m *APIModule) login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Email == "" || req.Password == "" {
		return badRequest(c, "Email and password are required")
	}

	session, err := m.services.Users.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(user.ToLoginResponse(session))
}

func (m *APIModule) listProducts(c *fiber.Ctx) error {
	page, err := m.services.Products.ListPublished(c.UserContext(), c.QueryInt("page", 1), product.DefaultPageSize)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(product.ToListResponse(page, m.now()))
}

// findProduct returns drafts to admins and only published products to everyone else.
func (m *APIModule) findProduct(c *fiber.Ctx) (*domain.Product, error) {
	if isAdmin(c) {
		return m.services.Products.GetByID(c.UserContext(), c.Params("id"))
	}
	return m.services.Products.GetVisible(c.UserContext(), c.Params("id"))
}

func (m *APIModule) getProduct(c *fiber.Ctx) error {
	p, err := m.findProduct(c)
	if err != nil {
		return writeError(c, err)
	}
	resp := product.ToResponse(p, m.now())
	resp.CreatedAt = nil
	return c.JSON(resp)
}

func (m *APIModule) createProduct(c *fiber.Ctx) error {
	req, file, err := parseProductRequest(c)
	if err != nil {
		return writeError(c, err)
	}

	in := product.CreateInput{PublishAt: req.PublishAt}
	if req.Name != nil {
		in.Name = *req.Name
	}
	if req.Price != nil {
		in.Price = string(*req.Price)
	}
	if err := m.services.Products.ValidateCreate(in); err != nil {
		return writeError(c, err)
	}
	if file != nil {
		name, err := m.storePhoto(c, file)
		if err != nil {
			return writeError(c, err)
		}
		in.Photo = &name
	}

	p, err := m.services.Products.Create(c.UserContext(), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(product.ToResponse(p, m.now()))
}

func (m *APIModule) updateProduct(c *fiber.Ctx) error {
	req, file, err := parseProductRequest(c)
	if err != nil {
		return writeError(c, err)
	}

	in := product.UpdateInput{
		Name:           req.Name,
		Price:          (*string)(req.Price),
		PublishAt:      req.PublishAt,
		ClearPublishAt: req.ClearPublishAt,
	}
	if err := m.services.Products.ValidateUpdate(in); err != nil {
		return writeError(c, err)
	}
	if file != nil {
		if _, err := m.services.Products.GetByID(c.UserContext(), c.Params("id")); err != nil {
			return writeError(c, err)
		}
		name, err := m.storePhoto(c, file)
		if err != nil {
			return writeError(c, err)
		}
		in.Photo = &name
	}

	p, err := m.services.Products.Update(c.UserContext(), c.Params("id"), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(product.ToResponse(p, m.now()))
}

func (m *APIModule) deleteProduct(c *fiber.Ctx) error {
	if err := m.services.Products.Delete(c.UserContext(), c.Params("id")); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// publishProduct publishes now, or schedules a publish job when ?at= is given.
func (m *APIModule) publishProduct(c *fiber.Ctx) error {
	id := c.Params("id")

	if raw := c.Query("at"); raw != "" {
		at, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			verr := domain.NewValidationError()
			verr.Add("at", "must be an RFC3339 timestamp")
			return writeError(c, verr)
		}
		j, err := m.services.Publisher.Schedule(c.UserContext(), id, at)
		if err != nil {
			return writeError(c, err)
		}
		return c.Status(fiber.StatusAccepted).JSON(ScheduleResponse{
			Message: "Product publish scheduled",
			JobID:   j.ID,
			RunAt:   at.UTC(),
		})
	}

	p, changed, err := m.services.Publisher.Publish(c.UserContext(), id)
	if err != nil {
		return writeError(c, err)
	}
	message := "Product published"
	if !changed {
		message = "Product already published"
	}
	return c.JSON(PublishResponse{
		Message: message,
		Changed: changed,
		Product: product.ToResponse(p, m.now()),
	})
}

func (m *APIModule) getProductPhoto(c *fiber.Ctx) error {
	p, err := m.findProduct(c)
	if err != nil {
		return writeError(c, err)
	}
	if p.Photo == nil {
		return writeError(c, photo.ErrPhotoNotFound)
	}
	if m.services.Photos == nil {
		return writeError(c, photo.ErrUnavailable)
	}

	ph, err := m.services.Photos.Open(c.UserContext(), *p.Photo)
	if err != nil {
		return writeError(c, err)
	}
	c.Set(fiber.HeaderContentType, ph.ContentType)
	c.Set(fiber.HeaderContentDisposition, `inline; filename="`+ph.Filename+`"`)
	return c.Send(ph.Data)
}

func (m *APIModule) listNotifications(c *fiber.Ctx) error {
	claims := claimsFrom(c)
	resp, err := m.services.Notifications.List(c.UserContext(), channel.ListNotificationsRequest{
		UserID:     claims.UserID,
		UnreadOnly: c.QueryBool("unread", false),
		Limit:      c.QueryInt("limit", 50),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(resp)
}

func (m *APIModule) markNotificationRead(c *fiber.Ctx) error {
	claims := claimsFrom(c)
	resp, err := m.services.Notifications.MarkRead(c.UserContext(), channel.MarkReadRequest{
		UserID: claims.UserID,
		ID:     c.Params("id"),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(resp)
}

func (m *APIModule) getJob(c *fiber.Ctx) error {
	j, err := m.services.Jobs.GetByID(c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(j)
}

// downloadSpecification serves the product specification document.
func (m *APIModule) downloadSpecification(c *fiber.Ctx) error {
	path := m.config.SpecFilePath
	if _, err := os.Stat(path); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Error:   "not_found",
			Message: "Specification file not found",
		})
	}
	return c.Download(path, filepath.Base(path))
}

// parseProductRequest reads a JSON body or a multipart form with an optional
// "photo" file part.
func parseProductRequest(c *fiber.Ctx) (ProductRequest, *multipart.FileHeader, error) {
	var req ProductRequest

	if !strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		if len(c.Body()) == 0 {
			return req, nil, nil
		}
		if err := c.BodyParser(&req); err != nil {
			verr := domain.NewValidationError()
			verr.Add("body", "must be valid JSON")
			return req, nil, verr
		}
		return req, nil, nil
	}

	form, err := c.MultipartForm()
	if err != nil {
		verr := domain.NewValidationError()
		verr.Add("body", "must be a valid multipart form")
		return req, nil, verr
	}

	verr := domain.NewValidationError()
	if v, ok := formValue(form, "name"); ok {
		req.Name = &v
	}
	if v, ok := formValue(form, "price"); ok {
		p := Price(v)
		req.Price = &p
	}
	if v, ok := formValue(form, "publish_at"); ok && v != "" {
		at, err := time.Parse(time.RFC3339, v)
		if err != nil {
			verr.Add("publish_at", "must be an RFC3339 timestamp")
		} else {
			req.PublishAt = &at
		}
	}
	if v, ok := formValue(form, "clear_publish_at"); ok {
		req.ClearPublishAt = v == "true" || v == "1"
	}

	var file *multipart.FileHeader
	if files := form.File["photo"]; len(files) > 0 {
		file = files[0]
	}
	return req, file, verr.Err()
}

func formValue(form *multipart.Form, key string) (string, bool) {
	values, ok := form.Value[key]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}

func (m *APIModule) storePhoto(c *fiber.Ctx, file *multipart.FileHeader) (string, error) {
	if m.services.Photos == nil {
		return "", photo.ErrUnavailable
	}

	f, err := file.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", fmt.Errorf("%w: photo is empty", photo.ErrInvalidFilename)
	}

	return m.services.Photos.Store(c.UserContext(), file.Filename, data, file.Header.Get(fiber.HeaderContentType))
}
