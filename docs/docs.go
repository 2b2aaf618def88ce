// Package docs регистрирует OpenAPI-описание для /swagger/*.
// Пересобирается командой: swag init -g cmd/main.go -o docs
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "paths": {
        "/auth/login": {"post": {"tags": ["auth"], "summary": "Вход по email и паролю", "responses": {"200": {"description": "token"}, "401": {"description": "invalid credentials"}}}},
        "/auth/register": {"post": {"tags": ["auth"], "summary": "Регистрация пользователя", "responses": {"201": {"description": "user and token"}}}},
        "/tournaments": {
            "get": {"tags": ["tournaments"], "summary": "Список турниров", "responses": {"200": {"description": "tournaments"}}},
            "post": {"tags": ["tournaments"], "summary": "Создать турнир", "security": [{"BearerAuth": []}], "responses": {"201": {"description": "tournament"}}}
        },
        "/tournaments/{tournamentID}/overview": {"get": {"tags": ["tournaments"], "summary": "Турнир целиком", "responses": {"200": {"description": "tournament"}}}},
        "/tournaments/{tournamentID}/registrations": {
            "get": {"tags": ["registrations"], "summary": "Заявки турнира", "responses": {"200": {"description": "registrations"}}},
            "post": {"tags": ["registrations"], "summary": "Подать заявку", "security": [{"BearerAuth": []}], "responses": {"201": {"description": "registration"}}}
        },
        "/tournaments/{tournamentID}/pools": {
            "get": {"tags": ["pools"], "summary": "Пулы и таблицы", "responses": {"200": {"description": "pools"}}},
            "post": {"tags": ["pools"], "summary": "Разбить заявки на пулы", "security": [{"BearerAuth": []}], "responses": {"201": {"description": "pools"}}}
        },
        "/tournaments/{tournamentID}/bracket": {
            "get": {"tags": ["bracket"], "summary": "Матчи плей-офф", "responses": {"200": {"description": "matches"}}},
            "post": {"tags": ["bracket"], "summary": "Построить плей-офф", "security": [{"BearerAuth": []}], "responses": {"201": {"description": "matches"}}}
        },
        "/tournaments/{tournamentID}/phases": {
            "get": {"tags": ["phases"], "summary": "Фазы King", "responses": {"200": {"description": "phases"}}},
            "put": {"tags": ["phases"], "summary": "Заменить план фаз", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "phases"}}}
        },
        "/phases/{phaseID}/start": {"post": {"tags": ["phases"], "summary": "Начать фазу", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "phase view"}}}},
        "/phases/{phaseID}/complete": {"post": {"tags": ["phases"], "summary": "Завершить фазу", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "phase view"}}}},
        "/matches/{matchID}/result": {
            "put": {"tags": ["matches"], "summary": "Записать счёт", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "match"}}},
            "delete": {"tags": ["matches"], "summary": "Сбросить счёт", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "match"}}}
        },
        "/formats/presets": {"get": {"tags": ["formats"], "summary": "Готовые форматы", "responses": {"200": {"description": "presets"}}}}
    }
}`

var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Volley Tournament API",
	Description:      "Турниры по пляжному волейболу: пулы, плей-офф и King of the Beach.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
