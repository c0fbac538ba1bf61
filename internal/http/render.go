package http

import (
	"bytes"
	"embed"
	"encoding/json"
	"html/template"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.New("base").Funcs(template.FuncMap{
	"toJSON": toJSON,
	"num":    num,
}).ParseFS(templateFS, "templates/*.html"))

func toJSON(v interface{}) template.JS {
	b, _ := json.Marshal(v)
	return template.JS(b)
}

func num(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return strconv.FormatFloat(*v, 'f', 1, 64)
}

func render(c *fiber.Ctx, status int, name string, data fiber.Map) error {
	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, name, data); err != nil {
		log.Error().Err(err).Str("template", name).Msg("render failed")
		return c.Status(fiber.StatusInternalServerError).SendString("template error")
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Status(status).Send(buf.Bytes())
}
