package display

import (
	"fmt"

	"github.com/coreman2200/edream/internal/config"
	"github.com/coreman2200/edream/internal/render"
)

const vertexShader = `#version 330 core
layout (location = 0) in vec2 aPos;
layout (location = 1) in vec2 aUV;
uniform vec4 rect;   // x, y, w, h in NDC
uniform vec4 uvRect; // x, y, w, h in texture space
out vec2 vUV;
void main() {
	vUV = uvRect.xy + aUV * uvRect.zw;
	gl_Position = vec4(rect.xy + aPos * rect.zw, 0.0, 1.0);
}
` + "\x00"

const discreteFragment = `#version 330 core
in vec2 vUV;
uniform sampler2D tex0;
uniform vec4 tint;
out vec4 FragColor;
void main() {
	vec3 c = texture(tex0, vUV).rgb;
	FragColor = vec4(c * tint.rgb, tint.a);
}
` + "\x00"

const linearFragment = `#version 330 core
in vec2 vUV;
uniform sampler2D tex0;
uniform sampler2D tex1;
uniform float delta;
uniform vec4 tint;
out vec4 FragColor;
void main() {
	vec3 a = texture(tex0, vUV).rgb;
	vec3 b = texture(tex1, vUV).rgb;
	FragColor = vec4(mix(a, b, clamp(delta, 0.0, 1.0)) * tint.rgb, tint.a);
}
` + "\x00"

const cubicFragment = `#version 330 core
in vec2 vUV;
uniform sampler2D tex0;
uniform sampler2D tex1;
uniform sampler2D tex2;
uniform sampler2D tex3;
uniform vec4 weights;
uniform vec4 tint;
out vec4 FragColor;
void main() {
	vec3 c = texture(tex0, vUV).rgb * weights.x
	       + texture(tex1, vUV).rgb * weights.y
	       + texture(tex2, vUV).rgb * weights.z
	       + texture(tex3, vUV).rgb * weights.w;
	FragColor = vec4(c * tint.rgb, tint.a);
}
` + "\x00"

// ShaderSource returns the program name and GLSL sources for mode.
func ShaderSource(mode config.DisplayMode) (name, vertex, fragment string, err error) {
	switch mode {
	case config.ModeDiscrete:
		return render.KernelDiscrete, vertexShader, discreteFragment, nil
	case config.ModeLinear:
		return render.KernelLinear, vertexShader, linearFragment, nil
	case config.ModeCubic:
		return render.KernelCubic, vertexShader, cubicFragment, nil
	default:
		return "", "", "", fmt.Errorf("display: unsupported mode %d", mode)
	}
}
