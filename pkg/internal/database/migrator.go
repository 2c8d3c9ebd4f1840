package database

import (
	"github.com/driveline/callbridge/pkg/internal/models"
	"gorm.io/gorm"
)

var AutoMaintainRange = []any{
	&models.CallSession{},
	&models.ParticipantRecord{},
	&models.CallEvent{},
}

func RunMigration(source *gorm.DB) error {
	if err := source.AutoMigrate(AutoMaintainRange...); err != nil {
		return err
	}

	return nil
}
