package docs

import _ "embed"

//go:embed campaign-api.openapi.yaml
var embeddedCampaignOpenAPI []byte

//go:embed swagger.html
var embeddedCampaignSwaggerHTML []byte

// CampaignOpenAPI is the OpenAPI description of the campaign API.
var CampaignOpenAPI = embeddedCampaignOpenAPI

// CampaignSwaggerHTML is the Swagger UI page serving it.
var CampaignSwaggerHTML = embeddedCampaignSwaggerHTML
