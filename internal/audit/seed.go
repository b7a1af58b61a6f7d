package audit

import (
	gorm_seeder "github.com/kachit/gorm-seeder"
	"gorm.io/gorm"
)

// CommandTypeSeederRows bounds the batch size gorm-seeder uses to insert the
// default command type registry.
const CommandTypeSeederRows = 10

// defaultCommandTypes is the out-of-the-box recognized command set: ranging
// and status are always understood; actuator commands are left for a
// deployment to add via migration once its device roster is known.
var defaultCommandTypes = []CommandType{
	{ID: 1, Name: "status_query", Description: "Request a RESPONSE carrying node address and voltage"},
	{ID: 2, Name: "ranging_start", Description: "Load and start a ranging ping roster"},
	{ID: 3, Name: "reprovision", Description: "Change this node's network or device id"},
}

// CommandTypeSeeder seeds the recognized command type registry on first
// boot, the same way the rest of the corpus seeds reference data.
type CommandTypeSeeder struct {
	gorm_seeder.SeederAbstract
}

func NewCommandTypeSeeder(cfg gorm_seeder.SeederConfiguration) CommandTypeSeeder {
	return CommandTypeSeeder{gorm_seeder.NewSeederAbstract(cfg)}
}

func (s *CommandTypeSeeder) Seed(db *gorm.DB) error {
	return db.CreateInBatches(defaultCommandTypes, s.Configuration.Rows).Error
}

func (s *CommandTypeSeeder) Clear(db *gorm.DB) error {
	return db.Exec("DELETE FROM " + CommandType{}.TableName()).Error
}
