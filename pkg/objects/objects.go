package objects

import (
	"github.com/gofiber/fiber/v2"

	"github.com/polylab/auth/pkg/config"
	"github.com/polylab/auth/pkg/libs"
)

var (
	Manager    *libs.Manager
	Config     *config.Config
	ViewEngine fiber.Views
	Layout     string
)
