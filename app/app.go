package app

import (
	"github.com/mberti/formdesk/config"
	"github.com/mberti/formdesk/forms"
)

type App struct {
	*forms.Service
	config.Config
}
