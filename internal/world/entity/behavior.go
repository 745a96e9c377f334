package entity

import "strconv"

// Behavior клиентская логика типа сущности
type Behavior interface {
	// OnSpawn заполняет свойства по умолчанию, которых нет в create
	OnSpawn(e *Entity)
	// Update вызывается на каждом тике, пока сущность в мире
	Update(e *Entity, dt float64)
}

// movingThreshold скорость (м/с), начиная с которой сущность считается идущей
const movingThreshold = 0.1

// PlayerBehavior определяет поведение игрока
type PlayerBehavior struct {
	maxHealth int
}

// NewPlayerBehavior создает новое поведение игрока
func NewPlayerBehavior() *PlayerBehavior {
	return &PlayerBehavior{maxHealth: 100}
}

// OnSpawn вызывается при создании игрока
func (pb *PlayerBehavior) OnSpawn(e *Entity) {
	e.setDefault("health", float64(pb.maxHealth))
	e.setDefault("level", float64(1))
	e.setDefault("experience", float64(0))
	e.setDefault("username", "Player"+strconv.FormatInt(int64(e.ID()), 10))
}

// Update обновляет анимационное состояние игрока
func (pb *PlayerBehavior) Update(e *Entity, dt float64) {
	if e.Speed() > movingThreshold {
		e.Properties["anim"] = "run"
	} else {
		e.Properties["anim"] = "idle"
	}
}

// NPCBehavior поведение неигрового персонажа
type NPCBehavior struct {
	profession string
}

// NewNPCBehavior создает поведение NPC указанной профессии
func NewNPCBehavior(profession string) *NPCBehavior {
	return &NPCBehavior{profession: profession}
}

func (nb *NPCBehavior) OnSpawn(e *Entity) {
	e.setDefault("profession", nb.profession)
	e.setDefault("idleTime", float64(0))
}

// Update считает время простоя, по нему клиент запускает idle-анимации
func (nb *NPCBehavior) Update(e *Entity, dt float64) {
	if e.Speed() > movingThreshold {
		e.Properties["idleTime"] = float64(0)
		return
	}
	idle, _ := e.Properties["idleTime"].(float64)
	e.Properties["idleTime"] = idle + dt
}

// AnimalBehavior поведение животного
type AnimalBehavior struct {
	animalType AnimalType
}

// NewAnimalBehavior создает поведение животного с подтипом по умолчанию
func NewAnimalBehavior(animalType AnimalType) *AnimalBehavior {
	return &AnimalBehavior{animalType: animalType}
}

func (ab *AnimalBehavior) OnSpawn(e *Entity) {
	e.setDefault("animalType", float64(ab.animalType))
	e.setDefault("state", "idle")
}

// Update выводит состояние (idle/walk) из скорости по фильтру
func (ab *AnimalBehavior) Update(e *Entity, dt float64) {
	if e.Speed() > movingThreshold {
		e.Properties["state"] = "walk"
	} else {
		e.Properties["state"] = "idle"
	}
}
