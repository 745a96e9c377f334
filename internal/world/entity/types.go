package entity

import "github.com/annel0/aoi-client/internal/aoi"

// EntityType представляет тип сущности; на проводе это aoi.TypeID
type EntityType uint16

const (
	EntityTypePlayer EntityType = iota
	EntityTypeNPC
	EntityTypeMonster
	EntityTypeItem
	EntityTypeProjectile
	EntityTypeAnimal  // Животное
	EntityTypeVehicle // Транспорт
)

// TypeID переводит тип в идентификатор протокола
func (t EntityType) TypeID() aoi.TypeID { return aoi.TypeID(t) }

func (t EntityType) String() string {
	switch t {
	case EntityTypePlayer:
		return "player"
	case EntityTypeNPC:
		return "npc"
	case EntityTypeMonster:
		return "monster"
	case EntityTypeItem:
		return "item"
	case EntityTypeProjectile:
		return "projectile"
	case EntityTypeAnimal:
		return "animal"
	case EntityTypeVehicle:
		return "vehicle"
	default:
		return "unknown"
	}
}

// AnimalType представляет подтипы животных
type AnimalType uint8

const (
	AnimalTypeCow AnimalType = iota
	AnimalTypeSheep
	AnimalTypeChicken
	AnimalTypePig
	AnimalTypeHorse
)

// TypeDescriptor описание типа сущности: ресурсы, которые нужно загрузить
// до входа в мир, и таблицы свойств/методов по messageID
type TypeDescriptor struct {
	Type   EntityType
	Name   string
	Assets []string

	// Properties имена свойств по messageID одиночного обновления
	Properties []string
	// Methods имена методов по messageID
	Methods []string

	// LocallyControlled сущность этого типа двигает клиент (игрок, его транспорт)
	LocallyControlled bool

	Behavior Behavior
}

// propertyName имя свойства по messageID
func (d *TypeDescriptor) propertyName(id uint16) (string, bool) {
	if int(id) >= len(d.Properties) {
		return "", false
	}
	return d.Properties[id], true
}

// methodName имя метода по messageID
func (d *TypeDescriptor) methodName(id uint16) (string, bool) {
	if int(id) >= len(d.Methods) {
		return "", false
	}
	return d.Methods[id], true
}

// DefaultTypes стандартный набор типов клиента
func DefaultTypes() []TypeDescriptor {
	return []TypeDescriptor{
		{
			Type:       EntityTypePlayer,
			Name:       "player",
			Assets:     []string{"models/player.glb", "anims/humanoid.anim"},
			Properties: []string{"health", "level", "username", "experience"},
			Methods:    []string{"chat", "emote", "teleport"},
			Behavior:   NewPlayerBehavior(),
		},
		{
			Type:       EntityTypeNPC,
			Name:       "npc",
			Assets:     []string{"models/villager.glb", "anims/humanoid.anim"},
			Properties: []string{"health", "dialogueId", "profession"},
			Methods:    []string{"say", "trade"},
			Behavior:   NewNPCBehavior("villager"),
		},
		{
			Type:       EntityTypeMonster,
			Name:       "monster",
			Assets:     []string{"models/monster.glb"},
			Properties: []string{"health", "target"},
			Methods:    []string{"attack"},
		},
		{
			Type:       EntityTypeItem,
			Name:       "item",
			Assets:     []string{"models/item.glb"},
			Properties: []string{"itemId", "count"},
		},
		{
			Type:       EntityTypeProjectile,
			Name:       "projectile",
			Properties: []string{"owner"},
		},
		{
			Type:       EntityTypeAnimal,
			Name:       "animal",
			Assets:     []string{"models/animal.glb"},
			Properties: []string{"health", "animalType", "state"},
			Methods:    []string{"sound"},
			Behavior:   NewAnimalBehavior(AnimalTypeCow),
		},
		{
			Type:       EntityTypeVehicle,
			Name:       "vehicle",
			Assets:     []string{"models/cart.glb"},
			Properties: []string{"driver", "speed"},
			Methods:    []string{"horn"},
		},
	}
}
