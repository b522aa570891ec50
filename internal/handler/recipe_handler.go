// Package handler 提供 HTTP 请求处理器
package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"bae-recipe-server/internal/middleware"
	"bae-recipe-server/internal/service"
	"bae-recipe-server/pkg/response"
)

// RecipeHandler 菜谱请求处理器
type RecipeHandler struct {
	recipeService *service.RecipeService
}

// NewRecipeHandler 创建 RecipeHandler 实例
func NewRecipeHandler(recipeService *service.RecipeService) *RecipeHandler {
	return &RecipeHandler{
		recipeService: recipeService,
	}
}

// List 获取当前用户的菜谱列表
// @Summary 菜谱列表
// @Tags 菜谱
// @Security Bearer
// @Produce json
// @Param page query int false "页码，默认 1"
// @Param page_size query int false "每页数量，默认 20"
// @Param favorite query bool false "仅收藏"
// @Success 200 {object} response.Response{data=service.RecipeListResult}
// @Router /api/recipes [get]
func (h *RecipeHandler) List(c *gin.Context) {
	userID := middleware.GetUserID(c)

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	favoriteOnly := c.Query("favorite") == "true"

	result, err := h.recipeService.ListRecipes(c.Request.Context(), userID, page, pageSize, favoriteOnly)
	if err != nil {
		response.InternalError(c, "获取菜谱列表失败")
		return
	}

	response.Success(c, result)
}

// Get 获取菜谱详情
// @Summary 菜谱详情
// @Tags 菜谱
// @Security Bearer
// @Produce json
// @Param id path int true "菜谱ID"
// @Success 200 {object} response.Response{data=model.Recipe}
// @Router /api/recipes/{id} [get]
func (h *RecipeHandler) Get(c *gin.Context) {
	userID := middleware.GetUserID(c)

	recipeID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "无效的菜谱ID")
		return
	}

	recipe, err := h.recipeService.GetRecipe(c.Request.Context(), userID, recipeID)
	if err != nil {
		if err == service.ErrRecipeNotFound {
			response.RecipeNotFound(c)
			return
		}
		response.InternalError(c, "获取菜谱失败")
		return
	}

	response.Success(c, recipe)
}

// SetFavorite 设置收藏状态
// @Summary 收藏/取消收藏菜谱
// @Tags 菜谱
// @Security Bearer
// @Accept json
// @Produce json
// @Param id path int true "菜谱ID"
// @Param body body SetFavoriteRequest true "收藏状态"
// @Success 200 {object} response.Response
// @Router /api/recipes/{id}/favorite [put]
func (h *RecipeHandler) SetFavorite(c *gin.Context) {
	userID := middleware.GetUserID(c)

	recipeID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "无效的菜谱ID")
		return
	}

	var req SetFavoriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误")
		return
	}

	if err := h.recipeService.SetFavorite(c.Request.Context(), userID, recipeID, req.IsFavorite); err != nil {
		if err == service.ErrRecipeNotFound {
			response.RecipeNotFound(c)
			return
		}
		response.InternalError(c, "设置收藏失败")
		return
	}

	response.SuccessWithMessage(c, "设置成功", nil)
}

// Delete 删除菜谱
// @Summary 删除菜谱
// @Tags 菜谱
// @Security Bearer
// @Produce json
// @Param id path int true "菜谱ID"
// @Success 204
// @Router /api/recipes/{id} [delete]
func (h *RecipeHandler) Delete(c *gin.Context) {
	userID := middleware.GetUserID(c)

	recipeID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "无效的菜谱ID")
		return
	}

	if err := h.recipeService.DeleteRecipe(c.Request.Context(), userID, recipeID); err != nil {
		if err == service.ErrRecipeNotFound {
			response.RecipeNotFound(c)
			return
		}
		response.InternalError(c, "删除菜谱失败")
		return
	}

	response.NoContent(c)
}

// SetFavoriteRequest 设置收藏请求
type SetFavoriteRequest struct {
	IsFavorite bool `json:"is_favorite"`
}
